package block

import (
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/ethaniccc/float32-cube/cube/trace"
	"github.com/go-gl/mathgl/mgl32"
)

// Props - свойства базового блока, которыми отвечает DefaultBehavior.
type Props struct {
	Hardness   float32 `yaml:"hardness"`
	Resistance float32 `yaml:"resistance"`
	LightValue int     `yaml:"light_value"`
	Color      int     `yaml:"color"`
	SolidSides bool    `yaml:"solid_sides"`
}

// DefaultProps возвращает свойства базового блока: твёрдость 1.0,
// непрозрачность выключена, белый цвет.
func DefaultProps() Props {
	return Props{
		Hardness:   1.0,
		Resistance: 5.0,
		Color:      0xFFFFFF,
	}
}

// DefaultBehavior - поведение блока без привязанного варианта.
type DefaultBehavior struct {
	props Props
}

// NewDefaultBehavior создаёт поведение по умолчанию.
func NewDefaultBehavior(props Props) *DefaultBehavior {
	return &DefaultBehavior{props: props}
}

// Props возвращает свойства поведения.
func (d *DefaultBehavior) Props() Props {
	return d.props
}

func (d *DefaultBehavior) Hardness(Site) float32 {
	return d.props.Hardness
}

func (d *DefaultBehavior) PlayerRelativeHardness(_ Site, p Player) float32 {
	return RelativeHardness(d.props.Hardness, p)
}

// RelativeHardness - доля прочности, снимаемая игроком за тик.
// Отрицательная твёрдость означает неразрушаемый блок.
func RelativeHardness(hardness float32, p Player) float32 {
	if hardness < 0 {
		return 0
	}
	if hardness == 0 {
		return 1
	}
	if p == nil || !p.CanHarvest() {
		return 1 / hardness / 100
	}
	return p.DigSpeed() / hardness / 30
}

func (d *DefaultBehavior) ExplosionResistance(Site, Entity, Explosion) float32 {
	return d.props.Resistance / 5
}

func (d *DefaultBehavior) LightValue(Site) int {
	return d.props.LightValue
}

func (d *DefaultBehavior) ColorMultiplier(Site, int) int {
	return d.props.Color
}

func (d *DefaultBehavior) BlockBounds(Site) cube.BBox {
	return unitBox
}

func (d *DefaultBehavior) CollisionBoxes(s Site, mask cube.BBox, _ Entity) []cube.BBox {
	return CollideBoxes(s.Pos, mask, d.BlockBounds(s))
}

func (d *DefaultBehavior) CollisionRayTrace(s Site, start, end mgl32.Vec3) (trace.BBoxResult, bool) {
	return TraceBoxes(s.Pos, start, end, d.BlockBounds(s))
}

// CollideBoxes переносит локальные коробки в позицию pos и оставляет
// только пересекающие mask.
func CollideBoxes(pos cube.Pos, mask cube.BBox, local ...cube.BBox) []cube.BBox {
	var out []cube.BBox
	offset := pos.Vec3()
	for _, bb := range local {
		box := bb.Translate(offset)
		if box.IntersectsWith(mask) {
			out = append(out, box)
		}
	}
	return out
}

// TraceBoxes возвращает ближайшее к start пересечение луча с коробками.
func TraceBoxes(pos cube.Pos, start, end mgl32.Vec3, local ...cube.BBox) (trace.BBoxResult, bool) {
	var (
		best  trace.BBoxResult
		found bool
		dist  float32
	)
	offset := pos.Vec3()
	for _, bb := range local {
		res, ok := trace.BBoxIntercept(bb.Translate(offset), start, end)
		if !ok {
			continue
		}
		if d := res.Position().Sub(start).LenSqr(); !found || d < dist {
			best, dist, found = res, d, true
		}
	}
	return best, found
}

func (d *DefaultBehavior) SideSolid(Site, cube.Face) bool {
	return d.props.SolidSides
}

// Drops - один предмет собственного варианта блока.
func (d *DefaultBehavior) Drops(s Site, _ int) []ItemStack {
	return []ItemStack{{Variant: s.Variant, Count: 1}}
}

func (d *DefaultBehavior) PickBlock(s Site, _ trace.BBoxResult) ItemStack {
	return ItemStack{Variant: s.Variant, Count: 1}
}

// NeighborChanged убирает блок: без поведения блок существовать не может.
func (d *DefaultBehavior) NeighborChanged(s Site, _ cube.Pos) {
	if s.World != nil {
		s.World.RemoveBlock(s.Pos)
	}
}

func (d *DefaultBehavior) PlacedBy(Site, Entity, ItemStack) {}

func (d *DefaultBehavior) Activated(Site, Player, cube.Face, mgl32.Vec3) bool {
	return false
}

func (d *DefaultBehavior) RemovedByPlayer(s Site, _ Player, _ bool) bool {
	if s.World == nil {
		return false
	}
	return s.World.RemoveBlock(s.Pos)
}

func (d *DefaultBehavior) Broken(Site) {}

func (d *DefaultBehavior) DestroyEffects(Site, EffectRenderer) bool {
	return false
}

func (d *DefaultBehavior) HitEffects(Site, trace.BBoxResult, EffectRenderer) bool {
	return false
}
