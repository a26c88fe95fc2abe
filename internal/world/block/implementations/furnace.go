package implementations

import (
	"sync"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/ethaniccc/float32-cube/cube/trace"
	"github.com/go-gl/mathgl/mgl32"
)

// FurnaceLight - свет горящей печи
const FurnaceLight = 13

// FurnaceBehavior - печь. Состояние горения живёт в экземпляре,
// поэтому сохраняется, пока экземпляр держит кеш.
type FurnaceBehavior struct {
	block.Passthrough

	mu      sync.Mutex
	pos     cube.Pos
	burning bool
}

// BindPosition запоминает позицию печи
func (f *FurnaceBehavior) BindPosition(pos cube.Pos) {
	f.pos = pos
}

// Burning сообщает, горит ли печь
func (f *FurnaceBehavior) Burning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.burning
}

func (f *FurnaceBehavior) Hardness(block.Site) float32 {
	return 3.5
}

func (f *FurnaceBehavior) LightValue(s block.Site) int {
	if f.Burning() {
		return FurnaceLight
	}
	return s.Default.LightValue(s)
}

// Activated переключает горение
func (f *FurnaceBehavior) Activated(_ block.Site, _ block.Player, _ cube.Face, _ mgl32.Vec3) bool {
	f.mu.Lock()
	f.burning = !f.burning
	f.mu.Unlock()
	return true
}

func (f *FurnaceBehavior) SideSolid(block.Site, cube.Face) bool {
	return true
}

// HitEffects добавляет дым над горящей печью
func (f *FurnaceBehavior) HitEffects(s block.Site, target trace.BBoxResult, r block.EffectRenderer) bool {
	if !f.Burning() || r == nil {
		return s.Default.HitEffects(s, target, r)
	}
	r.AddParticle("smoke", s.Pos.Vec3().Add(mgl32.Vec3{0.5, 1.1, 0.5}))
	return false
}
