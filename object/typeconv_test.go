package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromGo(t *testing.T) {
	obj, err := FromGo(map[string]any{
		"b": []any{1, "two", nil, true},
		"a": 1.5,
	})
	require.NoError(t, err)
	m, ok := obj.(*Map)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, m.Keys())

	list, _ := m.Get("b")
	require.Equal(t, LIST, list.Type())
	require.Equal(t, 1, list.RefCount())
	require.Equal(t, `[1,"two",null,true]`, list.String())
}

func TestFromGoUnsupported(t *testing.T) {
	_, err := FromGo(struct{}{})
	require.Error(t, err)
}

func TestFromGoTypedSlice(t *testing.T) {
	obj, err := FromGo([]int{3, 4})
	require.NoError(t, err)
	require.Equal(t, "[3,4]", obj.String())
}

func TestFromJSONKeepsKeyOrder(t *testing.T) {
	obj, err := FromJSON([]byte(`{"z": 1, "a": [true, null, "s"], "m": {"x": 2.5}}`))
	require.NoError(t, err)
	m, err := AsMap(obj)
	require.NoError(t, err)
	require.Equal(t, []string{"z", "a", "m"}, m.Keys())
	require.Equal(t, `{"z":1,"a":[true,null,"s"],"m":{"x":2.5}}`, m.String())
}

func TestFromJSONErrors(t *testing.T) {
	_, err := FromJSON([]byte(`{"a": `))
	require.Error(t, err)
	_, err = FromJSON([]byte(`1 2`))
	require.Error(t, err)
}

func TestAsHelpers(t *testing.T) {
	_, err := AsList(NewString("x"))
	require.Error(t, err)
	_, err = AsAtomic(NewList())
	require.Error(t, err)
	require.True(t, IsNull(nil))
	require.True(t, IsNull(Null))
	require.False(t, IsNull(NewString("")))
}
