package implementations

import (
	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/ethaniccc/float32-cube/cube/trace"
	"github.com/go-gl/mathgl/mgl32"
)

// paneBounds - тонкая панель вдоль оси X
var paneBounds = cube.Box(0, 0, 7.0/16, 1, 1, 9.0/16)

// GlassPaneBehavior - стеклянная панель: тонкая, хрупкая, без дропа.
type GlassPaneBehavior struct {
	block.Passthrough
}

func (g *GlassPaneBehavior) Hardness(block.Site) float32 {
	return 0.3
}

func (g *GlassPaneBehavior) BlockBounds(block.Site) cube.BBox {
	return paneBounds
}

func (g *GlassPaneBehavior) CollisionBoxes(s block.Site, mask cube.BBox, _ block.Entity) []cube.BBox {
	return block.CollideBoxes(s.Pos, mask, paneBounds)
}

func (g *GlassPaneBehavior) CollisionRayTrace(s block.Site, start, end mgl32.Vec3) (trace.BBoxResult, bool) {
	return block.TraceBoxes(s.Pos, start, end, paneBounds)
}

// SideSolid - сплошные только верх и низ панели
func (g *GlassPaneBehavior) SideSolid(_ block.Site, face cube.Face) bool {
	return face == cube.FaceUp || face == cube.FaceDown
}

// Drops - разбитое стекло ничего не оставляет
func (g *GlassPaneBehavior) Drops(block.Site, int) []block.ItemStack {
	return nil
}

func (g *GlassPaneBehavior) DestroyEffects(s block.Site, r block.EffectRenderer) bool {
	if r == nil {
		return false
	}
	r.AddParticle("glass_shard", s.Pos.Vec3().Add(mgl32.Vec3{0.5, 0.5, 0.5}))
	return true
}
