package object

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	closed int
	err    error
}

func (c *closeRecorder) Close() error {
	c.closed++
	return c.err
}

func TestReleaseDisposesAtZero(t *testing.T) {
	v := NewString("hello")
	v.RegisterReference()
	v.RegisterReference()
	require.Equal(t, 2, v.RefCount())

	v.ReleaseReference()
	require.False(t, v.IsClosed())
	v.ReleaseReference()
	require.True(t, v.IsClosed())
}

func TestPreventDisposalGuardsRelease(t *testing.T) {
	v := NewNumber(3)
	v.RegisterReference()
	v.PreventDisposal()
	v.ReleaseReference()
	require.False(t, v.IsClosed())

	v.AllowDisposal()
	require.False(t, v.IsClosed())
	v.RegisterReference()
	v.ReleaseReference()
	require.True(t, v.IsClosed())
}

func TestPreventDisposalIsRecursive(t *testing.T) {
	child := NewString("child")
	ls := NewList(child)
	ls.PreventDisposal()
	require.True(t, child.IsDisposalPrevented())
	ls.AllowDisposal()
	require.False(t, child.IsDisposalPrevented())
}

func TestPreventDisposalOnCycle(t *testing.T) {
	ls := NewList()
	ls.Append(ls)
	ls.PreventDisposal()
	require.True(t, ls.IsDisposalPrevented())
	ls.AllowDisposal()
	require.False(t, ls.IsDisposalPrevented())
}

func TestCloseIsIdempotent(t *testing.T) {
	rec := &closeRecorder{}
	v := NewString("x")
	v.StoreMeta(rec)

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
	require.True(t, v.IsClosed())
	require.Equal(t, 1, rec.closed)
}

func TestCloseReportsMetaErrors(t *testing.T) {
	v := NewString("x")
	v.StoreMeta(&closeRecorder{err: errors.New("boom")})
	err := v.Close()
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestNullIsNeverClosed(t *testing.T) {
	Null.RegisterReference()
	Null.ReleaseReference()
	Null.ReleaseReference()
	require.NoError(t, Null.Close())
	require.False(t, Null.IsClosed())
}

func TestContainerReleasesChildren(t *testing.T) {
	a := NewString("a")
	b := NewNumber(1)
	ls := NewList(a)
	m := NewMap()
	m.Put("b", b)
	ls.Append(m)

	require.Equal(t, 1, a.RefCount())
	require.Equal(t, 1, m.RefCount())

	ls.RegisterReference()
	ls.ReleaseReference()
	require.True(t, ls.IsClosed())
	require.True(t, a.IsClosed())
	require.True(t, m.IsClosed())
	require.True(t, b.IsClosed())
}

func TestSharedChildSurvivesOneOwner(t *testing.T) {
	shared := NewString("shared")
	first := NewList(shared)
	second := NewList(shared)
	require.Equal(t, 2, shared.RefCount())

	require.NoError(t, first.Close())
	require.False(t, shared.IsClosed())
	require.NoError(t, second.Close())
	require.True(t, shared.IsClosed())
}

func TestMetaPoolKeyedByType(t *testing.T) {
	v := NewString("x")
	first := &closeRecorder{}
	second := &closeRecorder{}
	v.StoreMeta(first)
	v.StoreMeta(second)
	require.Equal(t, 1, v.Meta().Len())

	got, ok := GetMeta[*closeRecorder](v)
	require.True(t, ok)
	require.Same(t, second, got)
	require.False(t, HasMeta[*Iter](v))
}

func TestTruthiness(t *testing.T) {
	tests := []struct {
		name  string
		value Object
		want  bool
	}{
		{"null", Null, false},
		{"true", NewBool(true), true},
		{"false", NewBool(false), false},
		{"zero", NewNumber(0), false},
		{"nan", NewNumber(math.NaN()), false},
		{"number", NewNumber(-2), true},
		{"empty string", NewString(""), false},
		{"false string", NewString("false"), false},
		{"string", NewString("no"), true},
		{"empty list", NewList(), false},
		{"list", NewList(Null), true},
		{"empty map", NewMap(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.value.IsTruthy())
		})
	}
}

func TestAtomicCoercions(t *testing.T) {
	require.Equal(t, "null", Null.Str())
	require.Equal(t, "3", NewNumber(3).Str())
	require.Equal(t, "3.5", NewNumber(3.5).Str())
	require.Equal(t, "true", NewBool(true).Str())
	require.Equal(t, float64(12), NewString(" 12 ").Number())
	require.True(t, math.IsNaN(NewString("abc").Number()))
	require.True(t, math.IsNaN(Null.Number()))
	require.Equal(t, float64(1), NewBool(true).Number())
	require.Equal(t, float64(2), ToNumber(NewList(Null, Null)))
}

func TestAtomicEquals(t *testing.T) {
	require.True(t, NewString("1").Equals(NewNumber(1)))
	require.True(t, NewString("1.0").Equals(NewNumber(1)))
	require.False(t, NewString("a").Equals(NewString("b")))
	require.False(t, Null.Equals(NewString("null")))
	require.True(t, Null.Equals(Null))
	require.False(t, NewNumber(1).Equals(NewList()))
}

func TestContainerEquals(t *testing.T) {
	a := NewList(NewNumber(1), NewString("x"))
	b := NewList(NewString("1"), NewString("x"))
	require.True(t, a.Equals(b))

	m1 := NewMap()
	m1.Put("k", NewNumber(1))
	m2 := NewMap()
	m2.Put("k", NewNumber(2))
	require.False(t, m1.Equals(m2))
}
