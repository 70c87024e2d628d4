package hierarchy

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Base struct{ ID int }

type Middle struct {
	Base
	Name string
}

type Leaf struct {
	Middle
	Extra bool
}

type WithPointerEmbed struct {
	*Base
}

type WithLateEmbed struct {
	Count int
	Base
}

type hidden struct{ N int }

type WithHiddenEmbed struct {
	hidden
}

type Alias Base
type Other Base
type MiddleAlt Middle

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func TestClosureOf(t *testing.T) {
	c := NewCache()

	tests := []struct {
		name string
		in   reflect.Type
		want []reflect.Type
	}{
		{"root", typeOf[Base](), []reflect.Type{typeOf[Base]()}},
		{"two levels", typeOf[Leaf](), []reflect.Type{typeOf[Leaf](), typeOf[Middle](), typeOf[Base]()}},
		{"pointer", typeOf[*Leaf](), []reflect.Type{typeOf[*Leaf](), typeOf[*Middle](), typeOf[*Base]()}},
		{"string", typeOf[string](), []reflect.Type{typeOf[string]()}},
		{"embedded pointer is not a parent", typeOf[WithPointerEmbed](), []reflect.Type{typeOf[WithPointerEmbed]()}},
		{"embed after named field", typeOf[WithLateEmbed](), []reflect.Type{typeOf[WithLateEmbed](), typeOf[Base]()}},
		{"unexported embed is not a parent", typeOf[WithHiddenEmbed](), []reflect.Type{typeOf[WithHiddenEmbed]()}},
		{"interface", typeOf[fmt.Stringer](), []reflect.Type{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ClosureOf(tt.in))
		})
	}

	assert.Nil(t, c.ClosureOf(nil))
}

func TestClosureOf_Cached(t *testing.T) {
	c := NewCache()
	first := c.ClosureOf(typeOf[Leaf]())
	second := c.ClosureOf(typeOf[Leaf]())

	require.Len(t, first, 3)
	assert.Same(t, &first[0], &second[0], "second lookup must return the cached slice")
	assert.Equal(t, 1, c.Len())
}

func TestRegisterParent(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.RegisterParent(typeOf[Alias](), typeOf[Base]()))

	assert.Equal(t,
		[]reflect.Type{typeOf[Alias](), typeOf[Base]()},
		c.ClosureOf(typeOf[Alias]()))
	assert.Equal(t,
		[]reflect.Type{typeOf[*Alias](), typeOf[*Base]()},
		c.ClosureOf(typeOf[*Alias]()),
		"pointer closure follows registered element parent")
}

func TestRegisterParent_OverridesEmbedding(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.RegisterParent(typeOf[Middle](), typeOf[MiddleAlt]()))

	assert.Equal(t,
		[]reflect.Type{typeOf[Leaf](), typeOf[Middle](), typeOf[MiddleAlt]()},
		c.ClosureOf(typeOf[Leaf]()))
}

func TestRegisterParent_Rejected(t *testing.T) {
	c := NewCache()

	assert.Error(t, c.RegisterParent(typeOf[Alias](), typeOf[fmt.Stringer]()))
	assert.Error(t, c.RegisterParent(typeOf[Alias](), typeOf[Alias]()))
	assert.Error(t, c.RegisterParent(nil, typeOf[Base]()))
	assert.ErrorIs(t, c.RegisterParent(typeOf[Leaf](), typeOf[Base]()), ErrNotConvertible)

	assert.Equal(t, []reflect.Type{typeOf[Alias]()}, c.ClosureOf(typeOf[Alias]()))
}

func TestClosureOf_CycleStops(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.RegisterParent(typeOf[Alias](), typeOf[Other]()))
	require.NoError(t, c.RegisterParent(typeOf[Other](), typeOf[Alias]()))

	assert.Equal(t,
		[]reflect.Type{typeOf[Alias](), typeOf[Other]()},
		c.ClosureOf(typeOf[Alias]()))
}

func TestClosureOf_Concurrent(t *testing.T) {
	c := NewCache()
	results := make([][]reflect.Type, 32)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.ClosureOf(typeOf[Leaf]())
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Same(t, &results[0][0], &r[0], "all goroutines see the first committed closure")
	}
}

func TestUpcast(t *testing.T) {
	c := NewCache()
	leaf := Leaf{Middle: Middle{Base: Base{ID: 7}, Name: "m"}, Extra: true}

	t.Run("identity", func(t *testing.T) {
		v, ok := c.Upcast(leaf, typeOf[Leaf]())
		require.True(t, ok)
		assert.Equal(t, leaf, v)
	})

	t.Run("embedded value", func(t *testing.T) {
		v, ok := c.Upcast(leaf, typeOf[Base]())
		require.True(t, ok)
		assert.Equal(t, Base{ID: 7}, v)
	})

	t.Run("embedded pointer aliases original", func(t *testing.T) {
		p := &leaf
		v, ok := c.Upcast(p, typeOf[*Middle]())
		require.True(t, ok)
		assert.Same(t, &p.Middle, v)
	})

	t.Run("nil pointer", func(t *testing.T) {
		v, ok := c.Upcast((*Leaf)(nil), typeOf[*Base]())
		require.True(t, ok)
		assert.Nil(t, v.(*Base))
	})

	t.Run("unrelated", func(t *testing.T) {
		_, ok := c.Upcast(leaf, typeOf[string]())
		assert.False(t, ok)
		_, ok = c.Upcast(nil, typeOf[Base]())
		assert.False(t, ok)
	})

	t.Run("registered conversion", func(t *testing.T) {
		require.NoError(t, c.RegisterParent(typeOf[Alias](), typeOf[Base]()))

		v, ok := c.Upcast(Alias{ID: 3}, typeOf[Base]())
		require.True(t, ok)
		assert.Equal(t, Base{ID: 3}, v)

		a := &Alias{ID: 4}
		pv, ok := c.Upcast(a, typeOf[*Base]())
		require.True(t, ok)
		assert.Equal(t, 4, pv.(*Base).ID)
	})
}

func BenchmarkClosureOf_Cached(b *testing.B) {
	c := NewCache()
	tp := typeOf[*Leaf]()
	c.ClosureOf(tp)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.ClosureOf(tp)
	}
}
