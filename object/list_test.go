package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListAppendAndGet(t *testing.T) {
	ls := NewList()
	ls.Append(NewNumber(1))
	ls.Append(NewString("two"))
	require.Equal(t, 2, ls.Len())

	v, ok := ls.Get(1)
	require.True(t, ok)
	require.Equal(t, "two", v.String())

	_, ok = ls.Get(2)
	require.False(t, ok)
	_, ok = ls.Get(-1)
	require.False(t, ok)
}

func TestListSetHandsBackPrevious(t *testing.T) {
	old := NewString("old")
	ls := NewList(old)
	before := ls.ModCount()

	prev, ok := ls.Set(0, NewString("new"))
	require.True(t, ok)
	require.Same(t, old, prev)
	require.Equal(t, before, ls.ModCount())

	prev.ReleaseReference()
	require.True(t, old.IsClosed())
}

func TestListStructuralChangesBumpModCount(t *testing.T) {
	ls := NewList()
	start := ls.ModCount()
	ls.Append(Null)
	require.NotEqual(t, start, ls.ModCount())

	mid := ls.ModCount()
	_, ok := ls.Remove(0)
	require.True(t, ok)
	require.NotEqual(t, mid, ls.ModCount())
}

func TestListString(t *testing.T) {
	ls := NewList(NewNumber(1), NewString("a"), Null, NewBool(false))
	require.Equal(t, `[1,"a",null,false]`, ls.String())
	require.Equal(t, `[1, "a", null, false]`, ls.Inspect())
	require.Equal(t, []any{float64(1), "a", nil, false}, ls.Interface())
}

func TestListCircularString(t *testing.T) {
	ls := NewList()
	ls.Append(ls)
	_, err := ls.MarshalJSON()
	require.ErrorIs(t, err, ErrCircular)
	require.Equal(t, "[[...]]", ls.String())
}
