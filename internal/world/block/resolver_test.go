package block

import (
	"testing"

	"github.com/ethaniccc/float32-cube/cube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boundBehavior struct {
	Passthrough
	pos cube.Pos
}

func (b *boundBehavior) BindPosition(pos cube.Pos) { b.pos = pos }

func TestResolver_Resolve(t *testing.T) {
	reg := NewRegistry(4)
	reg.MustRegister(0, stubType("Furnace"), "tile.furnace")
	r := NewResolver(reg)

	posA := cube.Pos{1, 2, 3}
	b, err := r.Resolve(posA, 0)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "Furnace", b.(*stubBehavior).name)

	// Каждый вызов создаёт новый экземпляр
	b2, err := r.Resolve(posA, 0)
	require.NoError(t, err)
	assert.NotSame(t, b, b2)
}

func TestResolver_AbsentVariants(t *testing.T) {
	reg := NewRegistry(4)
	reg.MustRegister(0, stubType("Furnace"), "tile.furnace")
	r := NewResolver(reg)

	for _, id := range []VariantID{1, 4, 9, -3, MaxVariantID} {
		b, err := r.Resolve(cube.Pos{}, id)
		assert.NoError(t, err, "незарегистрированный вариант %d не ошибка", id)
		assert.Nil(t, b)
	}
}

func TestResolver_InstantiationFailures(t *testing.T) {
	reg := NewRegistry(3)
	reg.MustRegister(0, BehaviorType{Name: "Abstract"}, "abstract")
	reg.MustRegister(1, TypeOf("Nil", func() Behavior { return nil }), "nil")
	reg.MustRegister(2, TypeOf("Panics", func() Behavior { panic("boom") }), "panics")
	r := NewResolver(reg)

	for id, name := range map[VariantID]string{0: "Abstract", 1: "Nil", 2: "Panics"} {
		b, err := r.Resolve(cube.Pos{}, id)
		assert.Nil(t, b)
		var ie *InstantiationError
		require.ErrorAs(t, err, &ie, "вариант %d", id)
		assert.Equal(t, id, ie.ID)
		assert.Equal(t, name, ie.Type)
	}
}

func TestResolver_BindsPosition(t *testing.T) {
	reg := NewRegistry(1)
	reg.MustRegister(0, TypeOf("Bound", func() Behavior { return &boundBehavior{} }), "bound")

	pos := cube.Pos{7, 64, -2}
	b, err := NewResolver(reg).Resolve(pos, 0)
	require.NoError(t, err)
	assert.Equal(t, pos, b.(*boundBehavior).pos)
}
