package block

import (
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/ethaniccc/float32-cube/cube/trace"
	"github.com/go-gl/mathgl/mgl32"
)

// Site - контекст вызова: мир, позиция, вариант и поведение по умолчанию.
// Default позволяет поведению вызвать реализацию базового блока напрямую,
// минуя разрешение варианта.
type Site struct {
	World   WorldState
	Pos     cube.Pos
	Variant VariantID
	Default Behavior
}

// Behavior определяет поведение блока. Его реализуют и варианты,
// и поведение по умолчанию.
type Behavior interface {
	Hardness(s Site) float32
	PlayerRelativeHardness(s Site, p Player) float32
	ExplosionResistance(s Site, exploder Entity, ex Explosion) float32
	LightValue(s Site) int
	ColorMultiplier(s Site, renderPass int) int

	// BlockBounds возвращает границы блока в локальных координатах.
	BlockBounds(s Site) cube.BBox
	// CollisionBoxes возвращает мировые коробки, пересекающие mask.
	CollisionBoxes(s Site, mask cube.BBox, e Entity) []cube.BBox
	CollisionRayTrace(s Site, start, end mgl32.Vec3) (trace.BBoxResult, bool)
	SideSolid(s Site, face cube.Face) bool

	Drops(s Site, fortune int) []ItemStack
	PickBlock(s Site, target trace.BBoxResult) ItemStack

	NeighborChanged(s Site, neighbour cube.Pos)
	PlacedBy(s Site, placer Entity, item ItemStack)
	Activated(s Site, p Player, face cube.Face, hit mgl32.Vec3) bool
	RemovedByPlayer(s Site, p Player, willHarvest bool) bool
	Broken(s Site)

	// DestroyEffects и HitEffects возвращают true, если частицы добавлены
	// самим поведением и движку не нужно рисовать свои.
	DestroyEffects(s Site, r EffectRenderer) bool
	HitEffects(s Site, target trace.BBoxResult, r EffectRenderer) bool
}

// Binder реализуют поведения, которым нужна своя позиция.
// Resolver вызывает BindPosition сразу после создания экземпляра.
type Binder interface {
	BindPosition(pos cube.Pos)
}

// Passthrough перенаправляет все вызовы в s.Default.
// Встраивается в поведения, переопределяющие только часть методов.
type Passthrough struct{}

func (Passthrough) Hardness(s Site) float32 { return s.Default.Hardness(s) }

func (Passthrough) PlayerRelativeHardness(s Site, p Player) float32 {
	return s.Default.PlayerRelativeHardness(s, p)
}

func (Passthrough) ExplosionResistance(s Site, exploder Entity, ex Explosion) float32 {
	return s.Default.ExplosionResistance(s, exploder, ex)
}

func (Passthrough) LightValue(s Site) int { return s.Default.LightValue(s) }

func (Passthrough) ColorMultiplier(s Site, renderPass int) int {
	return s.Default.ColorMultiplier(s, renderPass)
}

func (Passthrough) BlockBounds(s Site) cube.BBox { return s.Default.BlockBounds(s) }

func (Passthrough) CollisionBoxes(s Site, mask cube.BBox, e Entity) []cube.BBox {
	return s.Default.CollisionBoxes(s, mask, e)
}

func (Passthrough) CollisionRayTrace(s Site, start, end mgl32.Vec3) (trace.BBoxResult, bool) {
	return s.Default.CollisionRayTrace(s, start, end)
}

func (Passthrough) SideSolid(s Site, face cube.Face) bool { return s.Default.SideSolid(s, face) }

func (Passthrough) Drops(s Site, fortune int) []ItemStack { return s.Default.Drops(s, fortune) }

func (Passthrough) PickBlock(s Site, target trace.BBoxResult) ItemStack {
	return s.Default.PickBlock(s, target)
}

// NeighborChanged не перенаправляется: по умолчанию блок без поведения
// удаляется, а блок с поведением должен оставаться на месте.
func (Passthrough) NeighborChanged(Site, cube.Pos) {}

func (Passthrough) PlacedBy(s Site, placer Entity, item ItemStack) {
	s.Default.PlacedBy(s, placer, item)
}

func (Passthrough) Activated(s Site, p Player, face cube.Face, hit mgl32.Vec3) bool {
	return s.Default.Activated(s, p, face, hit)
}

func (Passthrough) RemovedByPlayer(s Site, p Player, willHarvest bool) bool {
	return s.Default.RemovedByPlayer(s, p, willHarvest)
}

func (Passthrough) Broken(s Site) { s.Default.Broken(s) }

func (Passthrough) DestroyEffects(s Site, r EffectRenderer) bool {
	return s.Default.DestroyEffects(s, r)
}

func (Passthrough) HitEffects(s Site, target trace.BBoxResult, r EffectRenderer) bool {
	return s.Default.HitEffects(s, target, r)
}
