package object

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrCircular is returned when a value graph that contains itself is encoded.
var ErrCircular = errors.New("cannot serialize a value that contains itself")

// plain converts a value graph into plain Go values. With forJSON set,
// numbers that JSON cannot carry are converted to their string form.
func plain(obj Object, seen map[Object]bool, forJSON bool) (any, error) {
	switch obj := obj.(type) {
	case *Atomic:
		if forJSON && obj.Kind() == KindNumber {
			if s := FormatNumber(obj.n); s == "NaN" || strings.HasSuffix(s, "Infinity") {
				return s, nil
			}
		}
		return obj.Interface(), nil
	case *List:
		if seen[obj] {
			return nil, ErrCircular
		}
		seen[obj] = true
		defer delete(seen, obj)
		items := obj.Items()
		out := make([]any, 0, len(items))
		for _, item := range items {
			v, err := plain(item, seen, forJSON)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *Map:
		if seen[obj] {
			return nil, ErrCircular
		}
		seen[obj] = true
		defer delete(seen, obj)
		out := make(map[string]any, obj.Len())
		for _, k := range obj.Keys() {
			item, _ := obj.Get(k)
			v, err := plain(item, seen, forJSON)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", obj)
	}
}

func marshal(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, obj, map[Object]bool{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encode writes JSON keeping the insertion order of map keys.
func encode(buf *bytes.Buffer, obj Object, seen map[Object]bool) error {
	switch obj := obj.(type) {
	case *Atomic:
		b, err := obj.MarshalJSON()
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case *List:
		if seen[obj] {
			return ErrCircular
		}
		seen[obj] = true
		defer delete(seen, obj)
		buf.WriteByte('[')
		for i, item := range obj.Items() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item, seen); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case *Map:
		if seen[obj] {
			return ErrCircular
		}
		seen[obj] = true
		defer delete(seen, obj)
		buf.WriteByte('{')
		for i, k := range obj.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			item, _ := obj.Get(k)
			if err := encode(buf, item, seen); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("unsupported value type %T", obj)
	}
}

func stringify(obj Object) string {
	b, err := marshal(obj)
	if err != nil {
		return obj.Inspect()
	}
	return string(b)
}

// FromJSON decodes a JSON document into a value graph. Object keys keep
// their document order.
func FromJSON(data []byte) (Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	obj, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		obj.Close()
		return nil, errors.New("invalid json: trailing data")
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (Object, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	switch tok := tok.(type) {
	case json.Delim:
		switch tok {
		case '[':
			ls := NewList()
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					ls.Close()
					return nil, err
				}
				ls.Append(item)
			}
			if _, err := dec.Token(); err != nil {
				ls.Close()
				return nil, fmt.Errorf("invalid json: %w", err)
			}
			return ls, nil
		case '{':
			m := NewMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					m.Close()
					return nil, fmt.Errorf("invalid json: %w", err)
				}
				key, _ := keyTok.(string)
				item, err := decodeValue(dec)
				if err != nil {
					m.Close()
					return nil, err
				}
				if prev, existed := m.Put(key, item); existed {
					prev.ReleaseReference()
				}
			}
			if _, err := dec.Token(); err != nil {
				m.Close()
				return nil, fmt.Errorf("invalid json: %w", err)
			}
			return m, nil
		}
		return nil, fmt.Errorf("invalid json: unexpected %q", tok)
	case json.Number:
		f, err := tok.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid json number %q", tok.String())
		}
		return NewNumber(f), nil
	case string:
		return NewString(tok), nil
	case bool:
		return NewBool(tok), nil
	case nil:
		return Null, nil
	default:
		return nil, fmt.Errorf("invalid json: unexpected token %v", tok)
	}
}
