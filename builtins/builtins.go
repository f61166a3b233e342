// Package builtins defines the default leaf constructs available to robots.
package builtins

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/deepnoodle-ai/robot/vm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func emit(ctx vm.ConstructContext, level zerolog.Level, msg string) {
	if ctx.Output != nil {
		ctx.Output.HandleLog(ctx.Robot, level, "%s", msg)
		return
	}
	log.WithLevel(level).Str("robot", ctx.Robot.String()).Msg(msg)
}

func joined(args []object.Object) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = object.ToString(arg)
	}
	return strings.Join(parts, " ")
}

// Print writes its arguments, separated by spaces, at info level.
func Print(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
	emit(ctx, zerolog.InfoLevel, joined(args))
	return object.Null, nil
}

// Log writes a message at the given level, which defaults to info.
func Log(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, errz.Runtimef("log: expected 1-2 arguments, got %d", len(args))
	}
	level := zerolog.InfoLevel
	if len(args) == 2 {
		parsed, err := zerolog.ParseLevel(strings.ToLower(object.ToString(args[1])))
		if err != nil || parsed == zerolog.NoLevel {
			return nil, errz.Valuef("log: invalid level %s", args[1].Inspect())
		}
		level = parsed
	}
	emit(ctx, level, object.ToString(args[0]))
	return object.Null, nil
}

// Length returns the number of items of a container or the number of
// characters of a string.
func Length(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, errz.Runtimef("length: expected 1 argument, got %d", len(args))
	}
	switch arg := args[0].(type) {
	case object.Container:
		return object.NewInt(int64(arg.Len())), nil
	case *object.Atomic:
		if arg.IsNull() {
			return object.NewInt(0), nil
		}
		return object.NewInt(int64(utf8.RuneCountInString(arg.Str()))), nil
	default:
		return nil, errz.Typef("length: unsupported argument (%s given)", args[0].Type())
	}
}

// Type returns ATOMIC, LIST or OBJECT.
func Type(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, errz.Runtimef("type: expected 1 argument, got %d", len(args))
	}
	return object.NewString(string(args[0].Type())), nil
}

func String(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, errz.Runtimef("string: expected 1 argument, got %d", len(args))
	}
	return object.NewString(object.ToString(args[0])), nil
}

func Number(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, errz.Runtimef("number: expected 1 argument, got %d", len(args))
	}
	return object.NewNumber(object.ToNumber(args[0])), nil
}

// Range yields the numbers from start up to, but not including, end. It
// returns an atomic carrying a lazy sequence, which foreach walks without
// materializing a list.
func Range(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
	if len(args) < 1 || len(args) > 3 {
		return nil, errz.Runtimef("range: expected 1-3 arguments, got %d", len(args))
	}
	nums := make([]float64, len(args))
	for i, arg := range args {
		n := object.ToNumber(arg)
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, errz.Valuef("range: invalid bound %s", arg.Inspect())
		}
		nums[i] = n
	}
	var start, end, step float64
	switch len(nums) {
	case 1:
		end = nums[0]
	case 2:
		start, end = nums[0], nums[1]
	case 3:
		start, end, step = nums[0], nums[1], nums[2]
	}
	if len(nums) < 3 {
		step = 1
		if end < start {
			step = -1
		}
	}
	if step == 0 {
		return nil, errz.Valuef("range: step must not be zero")
	}
	desc := fmt.Sprintf("range(%s, %s, %s)", object.FormatNumber(start), object.FormatNumber(end), object.FormatNumber(step))
	return object.IterValue(object.NewIter(desc, rangeSeq(start, end, step))), nil
}

func rangeSeq(start, end, step float64) iter.Seq[object.Object] {
	return func(yield func(object.Object) bool) {
		for n := start; (step > 0 && n < end) || (step < 0 && n > end); n += step {
			if !yield(object.NewNumber(n)) {
				return
			}
		}
	}
}

// Keys returns the keys of an object in insertion order.
func Keys(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, errz.Runtimef("keys: expected 1 argument, got %d", len(args))
	}
	m, ok := args[0].(*object.Map)
	if !ok {
		return nil, errz.Typef("keys: expected an OBJECT (%s given)", args[0].Type())
	}
	result := object.NewList()
	for _, key := range m.Keys() {
		result.Append(object.NewString(key))
	}
	return result, nil
}

// Error raises a runtime error with the given message.
func Error(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
	if len(args) > 1 {
		return nil, errz.Runtimef("error: expected 0-1 arguments, got %d", len(args))
	}
	msg := "An error occurred"
	if len(args) == 1 && !object.IsNull(args[0]) {
		msg = object.ToString(args[0])
	}
	return nil, errz.Runtimef("%s", msg)
}

// JSON encodes a value. A truthy second argument indents the output.
func JSON(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, errz.Runtimef("json: expected 1-2 arguments, got %d", len(args))
	}
	data, err := args[0].MarshalJSON()
	if err != nil {
		return nil, errz.Valuef("json: %s", err).WithCause(err)
	}
	if len(args) == 2 && args[1].IsTruthy() {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return nil, errz.Valuef("json: %s", err).WithCause(err)
		}
		data = buf.Bytes()
	}
	return object.NewString(string(data)), nil
}

// ParseJSON decodes a JSON document into a value.
func ParseJSON(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, errz.Runtimef("parseJSON: expected 1 argument, got %d", len(args))
	}
	value, err := object.FromJSON([]byte(object.ToString(args[0])))
	if err != nil {
		return nil, errz.Valuef("parseJSON: invalid JSON: %s", err).WithCause(err)
	}
	return value, nil
}

// Defaults returns the default constructs keyed by name.
func Defaults() map[string]vm.Construct {
	return map[string]vm.Construct{
		"print":     vm.NewConstruct("print", Print),
		"log":       vm.NewConstruct("log", Log),
		"length":    vm.NewConstruct("length", Length),
		"type":      vm.NewConstruct("type", Type),
		"string":    vm.NewConstruct("string", String),
		"number":    vm.NewConstruct("number", Number),
		"range":     vm.NewConstruct("range", Range),
		"keys":      vm.NewConstruct("keys", Keys),
		"error":     vm.NewConstruct("error", Error),
		"json":      vm.NewConstruct("json", JSON),
		"parseJSON": vm.NewConstruct("parseJSON", ParseJSON),
	}
}
