package implementations

import (
	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/ethaniccc/float32-cube/cube/trace"
	"github.com/go-gl/mathgl/mgl32"
)

// pipeInset - отступ сердцевины трубы от граней блока
const pipeInset = 5.0 / 16

// PipeBehavior - труба: сердцевина внутри блока и отводы к соседним трубам.
type PipeBehavior struct {
	block.Passthrough
}

// core сжимает границы базового блока до сердцевины трубы
func (p *PipeBehavior) core(s block.Site) cube.BBox {
	full := s.Default.BlockBounds(s)
	lo, hi := full.Min(), full.Max()
	return cube.Box(
		lo.X()+pipeInset, lo.Y()+pipeInset, lo.Z()+pipeInset,
		hi.X()-pipeInset, hi.Y()-pipeInset, hi.Z()-pipeInset,
	)
}

// arm - отвод от сердцевины до грани face
func arm(core cube.BBox, face cube.Face) cube.BBox {
	lo, hi := core.Min(), core.Max()
	switch face {
	case cube.FaceDown:
		return cube.Box(lo.X(), 0, lo.Z(), hi.X(), lo.Y(), hi.Z())
	case cube.FaceUp:
		return cube.Box(lo.X(), hi.Y(), lo.Z(), hi.X(), 1, hi.Z())
	case cube.FaceNorth:
		return cube.Box(lo.X(), lo.Y(), 0, hi.X(), hi.Y(), lo.Z())
	case cube.FaceSouth:
		return cube.Box(lo.X(), lo.Y(), hi.Z(), hi.X(), hi.Y(), 1)
	case cube.FaceWest:
		return cube.Box(0, lo.Y(), lo.Z(), lo.X(), hi.Y(), hi.Z())
	default:
		return cube.Box(hi.X(), lo.Y(), lo.Z(), 1, hi.Y(), hi.Z())
	}
}

var pipeFaces = []cube.Face{cube.FaceDown, cube.FaceUp, cube.FaceNorth, cube.FaceSouth, cube.FaceWest, cube.FaceEast}

// Boxes возвращает локальные коробки трубы с учётом соседних труб.
func (p *PipeBehavior) Boxes(s block.Site) []cube.BBox {
	core := p.core(s)
	boxes := []cube.BBox{core}
	if s.World == nil {
		return boxes
	}
	for _, face := range pipeFaces {
		if id, ok := s.World.Variant(s.Pos.Side(face)); ok && id == PipeVariant {
			boxes = append(boxes, arm(core, face))
		}
	}
	return boxes
}

func (p *PipeBehavior) BlockBounds(s block.Site) cube.BBox {
	return p.core(s)
}

func (p *PipeBehavior) CollisionBoxes(s block.Site, mask cube.BBox, _ block.Entity) []cube.BBox {
	return block.CollideBoxes(s.Pos, mask, p.Boxes(s)...)
}

func (p *PipeBehavior) CollisionRayTrace(s block.Site, start, end mgl32.Vec3) (trace.BBoxResult, bool) {
	return block.TraceBoxes(s.Pos, start, end, p.Boxes(s)...)
}

func (p *PipeBehavior) SideSolid(block.Site, cube.Face) bool {
	return false
}

func (p *PipeBehavior) Hardness(block.Site) float32 {
	return 0.5
}
