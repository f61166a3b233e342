package program

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a decoded robot document. Documents are YAML (or JSON, which
// YAML accepts) mappings with a body of statements.
type Document struct {
	// Robot names the robot. It defaults to the file name without extension.
	Robot string `yaml:"robot"`
	// Name is a human readable title.
	Name string `yaml:"name"`
	// Args declares the variable receiving the call argument.
	Args *Args `yaml:"args,omitempty"`
	// Include lists library documents, relative to this document.
	Include []string    `yaml:"include,omitempty"`
	Body    []Statement `yaml:"body"`
}

// Args declares the argument variable of a robot, either as a bare name or
// as a mapping with a name and a default expression.
type Args struct {
	Line    int
	Name    string
	Default *Expr
}

func (a *Args) UnmarshalYAML(node *yaml.Node) error {
	a.Line = node.Line
	if node.Kind == yaml.ScalarNode {
		a.Name = node.Value
	} else {
		if err := checkKeys(node, "args", []string{"name", "default"}); err != nil {
			return err
		}
		var raw struct {
			Name    string `yaml:"name"`
			Default *Expr  `yaml:"default"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		a.Name, a.Default = raw.Name, raw.Default
	}
	if a.Name == "" {
		return nodeErrorf(node, "args: a variable name is required")
	}
	return nil
}

// Param is a function parameter, either a bare name or a mapping with a
// name and a default expression.
type Param struct {
	Line    int
	Name    string
	Default *Expr
}

func (p *Param) UnmarshalYAML(node *yaml.Node) error {
	var args Args
	if err := args.UnmarshalYAML(node); err != nil {
		return err
	}
	*p = Param(args)
	return nil
}

// Statement kinds, named after the key that selects them.
const (
	KindVar      = "var"
	KindAssign   = "assign"
	KindExpr     = "expr"
	KindIf       = "if"
	KindWhile    = "while"
	KindForeach  = "foreach"
	KindDo       = "do"
	KindFunction = "function"
	KindReturn   = "return"
	KindBreak    = "break"
	KindContinue = "continue"
)

var statementKeys = map[string][]string{
	KindVar:      {"value"},
	KindAssign:   {"path", "value"},
	KindExpr:     nil,
	KindIf:       {"then", "elif", "else"},
	KindWhile:    {"body"},
	KindForeach:  {"key", "in", "body"},
	KindDo:       {"success", "error", "finally", "cause"},
	KindFunction: {"params", "body"},
	KindReturn:   nil,
	KindBreak:    nil,
	KindContinue: nil,
}

// Statement is one entry of a body. Which fields are meaningful depends on
// Kind.
type Statement struct {
	Line int    `yaml:"-"`
	Kind string `yaml:"-"`

	Var    string  `yaml:"var"`
	Assign string  `yaml:"assign"`
	Path   []*Expr `yaml:"path"`
	Value  *Expr   `yaml:"value"`
	Expr   *Expr   `yaml:"expr"`

	If   *Expr       `yaml:"if"`
	Then []Statement `yaml:"then"`
	Elif []Statement `yaml:"elif"`
	Else []Statement `yaml:"else"`

	While   *Expr       `yaml:"while"`
	Foreach string      `yaml:"foreach"`
	Key     string      `yaml:"key"`
	In      *Expr       `yaml:"in"`
	Body    []Statement `yaml:"body"`

	Do      []Statement `yaml:"do"`
	Success []Statement `yaml:"success"`
	Error   []Statement `yaml:"error"`
	Finally []Statement `yaml:"finally"`
	Cause   string      `yaml:"cause"`

	Function string  `yaml:"function"`
	Params   []Param `yaml:"params"`

	Return   *Expr `yaml:"return"`
	Break    bool  `yaml:"break"`
	Continue bool  `yaml:"continue"`
}

func (s *Statement) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return nodeErrorf(node, "a statement must be a mapping")
	}
	kind, err := kindOf(node, "statement", statementKeys)
	if err != nil {
		return err
	}
	type plain Statement
	if err := node.Decode((*plain)(s)); err != nil {
		return err
	}
	s.Line, s.Kind = node.Line, kind
	return nil
}

// Expression kinds, named after the key that selects them.
const (
	ExprLit     = "lit"
	ExprRef     = "ref"
	ExprList    = "list"
	ExprObject  = "object"
	ExprOp      = "op"
	ExprNot     = "not"
	ExprNeg     = "neg"
	ExprCall    = "call"
	ExprFn      = "fn"
	ExprCallbot = "callbot"
	ExprRunbulk = "runbulk"
)

var exprKeys = map[string][]string{
	ExprLit:     nil,
	ExprRef:     {"path"},
	ExprList:    nil,
	ExprObject:  nil,
	ExprOp:      {"args"},
	ExprNot:     nil,
	ExprNeg:     nil,
	ExprCall:    {"args"},
	ExprFn:      {"args"},
	ExprCallbot: {"arg"},
	ExprRunbulk: {"arg", "options"},
}

// Entry is one key of an object expression.
type Entry struct {
	Key   string
	Value *Expr
}

// Expr is an expression. Scalars and sequences written in place of an
// expression are shorthands for lit and list.
type Expr struct {
	Line int    `yaml:"-"`
	Kind string `yaml:"-"`

	Lit     *yaml.Node `yaml:"lit"`
	Ref     string     `yaml:"ref"`
	Path    []*Expr    `yaml:"path"`
	List    []*Expr    `yaml:"list"`
	Object  []Entry    `yaml:"-"`
	Op      string     `yaml:"op"`
	Args    []*Expr    `yaml:"args"`
	Not     *Expr      `yaml:"not"`
	Neg     *Expr      `yaml:"neg"`
	Call    string     `yaml:"call"`
	Fn      string     `yaml:"fn"`
	Callbot *Expr      `yaml:"callbot"`
	Runbulk *Expr      `yaml:"runbulk"`
	Arg     *Expr      `yaml:"arg"`
	Options *Expr      `yaml:"options"`
}

func (e *Expr) UnmarshalYAML(node *yaml.Node) error {
	e.Line = node.Line
	switch node.Kind {
	case yaml.ScalarNode, yaml.AliasNode:
		e.Kind, e.Lit = ExprLit, node
		return nil
	case yaml.SequenceNode:
		e.Kind = ExprList
		return node.Decode(&e.List)
	case yaml.MappingNode:
	default:
		return nodeErrorf(node, "invalid expression")
	}

	kind, err := kindOf(node, "expression", exprKeys)
	if err != nil {
		return err
	}
	type plain struct {
		Lit     any        `yaml:"lit"`
		Ref     string     `yaml:"ref"`
		Path    []*Expr    `yaml:"path"`
		List    []*Expr    `yaml:"list"`
		Object  yaml.Node  `yaml:"object"`
		Op      string     `yaml:"op"`
		Args    []*Expr    `yaml:"args"`
		Not     *Expr      `yaml:"not"`
		Neg     *Expr      `yaml:"neg"`
		Call    string     `yaml:"call"`
		Fn      string     `yaml:"fn"`
		Callbot *Expr      `yaml:"callbot"`
		Runbulk *Expr      `yaml:"runbulk"`
		Arg     *Expr      `yaml:"arg"`
		Options *Expr      `yaml:"options"`
	}
	var raw plain
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*e = Expr{
		Line: node.Line, Kind: kind,
		Lit: mappingValue(node, "lit"), Ref: raw.Ref, Path: raw.Path, List: raw.List,
		Op: raw.Op, Args: raw.Args, Not: raw.Not, Neg: raw.Neg,
		Call: raw.Call, Fn: raw.Fn, Callbot: raw.Callbot, Runbulk: raw.Runbulk,
		Arg: raw.Arg, Options: raw.Options,
	}
	if kind == ExprLit && e.Lit == nil {
		e.Lit = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Line: node.Line}
	}
	if kind == ExprObject {
		return e.decodeObject(&raw.Object)
	}
	return nil
}

func (e *Expr) decodeObject(node *yaml.Node) error {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return nodeErrorf(node, "object: expected a mapping of keys to expressions")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nodeErrorf(key, "object: keys must be scalars")
		}
		var expr *Expr
		if err := value.Decode(&expr); err != nil {
			return err
		}
		e.Object = append(e.Object, Entry{Key: key.Value, Value: expr})
	}
	return nil
}

// mappingValue returns the value node of key in a mapping node, or nil.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// NodeError is a document error at a line.
type NodeError struct {
	Line    int
	Message string
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func nodeErrorf(node *yaml.Node, format string, args ...any) error {
	return &NodeError{Line: node.Line, Message: fmt.Sprintf(format, args...)}
}

// kindOf finds the single kind key of a mapping and checks that every other
// key is allowed for that kind.
func kindOf(node *yaml.Node, what string, kinds map[string][]string) (string, error) {
	var found []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		if _, ok := kinds[node.Content[i].Value]; ok {
			found = append(found, node.Content[i].Value)
		}
	}
	switch len(found) {
	case 0:
		known := make([]string, 0, len(kinds))
		for kind := range kinds {
			known = append(known, kind)
		}
		slices.Sort(known)
		return "", nodeErrorf(node, "%s must have one of the keys %s", what, strings.Join(known, ", "))
	case 1:
	default:
		return "", nodeErrorf(node, "%s has conflicting keys %s", what, strings.Join(found, " and "))
	}
	kind := found[0]
	return kind, checkKeys(node, kind, append([]string{kind}, kinds[kind]...))
}

func checkKeys(node *yaml.Node, what string, allowed []string) error {
	if node.Kind != yaml.MappingNode {
		return nodeErrorf(node, "%s: expected a mapping", what)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if !slices.Contains(allowed, key.Value) {
			return nodeErrorf(key, "%s: unknown key %q", what, key.Value)
		}
	}
	return nil
}

// Decode reads a document. Unknown top level keys are errors. An empty
// input is an empty document.
func Decode(r io.Reader) (*Document, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var doc Document
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Document{}, nil
		}
		return nil, err
	}
	return &doc, nil
}
