package builtins

import "sort"

// FuncSpec documents a builtin construct.
type FuncSpec struct {
	Name    string
	Doc     string
	Args    []string
	Returns string
	Example string
}

// Docs returns documentation for all builtin constructs, sorted by name.
func Docs() []FuncSpec {
	docs := make([]FuncSpec, len(builtinDocs))
	copy(docs, builtinDocs)
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs
}

var builtinDocs = []FuncSpec{
	{
		Name:    "print",
		Doc:     "Write the arguments, separated by spaces, to the output",
		Args:    []string{"values..."},
		Returns: "null",
		Example: `{"call": "print", "args": [{"lit": "hello"}]}`,
	},
	{
		Name:    "log",
		Doc:     "Write a message at a log level (debug, info, warn, error)",
		Args:    []string{"message", "level?"},
		Returns: "null",
		Example: `{"call": "log", "args": [{"lit": "careful"}, {"lit": "warn"}]}`,
	},
	{
		Name:    "length",
		Doc:     "Return the number of items of a list or object, or of characters of a string",
		Args:    []string{"value"},
		Returns: "number",
		Example: `{"call": "length", "args": [{"list": [{"lit": 1}, {"lit": 2}]}]}`,
	},
	{
		Name:    "type",
		Doc:     "Return ATOMIC, LIST or OBJECT",
		Args:    []string{"value"},
		Returns: "string",
		Example: `{"call": "type", "args": [{"lit": "x"}]}`,
	},
	{
		Name:    "string",
		Doc:     "Convert a value to a string",
		Args:    []string{"value"},
		Returns: "string",
		Example: `{"call": "string", "args": [{"lit": 42}]}`,
	},
	{
		Name:    "number",
		Doc:     "Convert a value to a number; containers convert to their size",
		Args:    []string{"value"},
		Returns: "number",
		Example: `{"call": "number", "args": [{"lit": "42"}]}`,
	},
	{
		Name:    "range",
		Doc:     "Produce the numbers from start up to end, lazily",
		Args:    []string{"start|end", "end?", "step?"},
		Returns: "iterator",
		Example: `{"call": "range", "args": [{"lit": 0}, {"lit": 10}, {"lit": 2}]}`,
	},
	{
		Name:    "keys",
		Doc:     "Return the keys of an object in insertion order",
		Args:    []string{"object"},
		Returns: "list",
		Example: `{"call": "keys", "args": [{"ref": "config"}]}`,
	},
	{
		Name:    "error",
		Doc:     "Raise a runtime error",
		Args:    []string{"message?"},
		Returns: "never",
		Example: `{"call": "error", "args": [{"lit": "missing input"}]}`,
	},
	{
		Name:    "json",
		Doc:     "Encode a value as JSON",
		Args:    []string{"value", "pretty?"},
		Returns: "string",
		Example: `{"call": "json", "args": [{"ref": "config"}, {"lit": true}]}`,
	},
	{
		Name:    "parseJSON",
		Doc:     "Decode a JSON document",
		Args:    []string{"text"},
		Returns: "value",
		Example: `{"call": "parseJSON", "args": [{"lit": "{\"a\": 1}"}]}`,
	},
}
