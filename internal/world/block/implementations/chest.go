package implementations

import (
	"sync"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/ethaniccc/float32-cube/cube/trace"
	"github.com/go-gl/mathgl/mgl32"
)

// ChestSlots - вместимость сундука
const ChestSlots = 27

// chestBounds - сундук чуть меньше полного блока
var chestBounds = cube.Box(1.0/16, 0, 1.0/16, 15.0/16, 14.0/16, 15.0/16)

// spillKey - позиция снятого сундука в конкретном мире
type spillKey struct {
	world block.WorldState
	pos   cube.Pos
}

// spills держит содержимое сундуков между RemovedByPlayer и Drops.
// После удаления блока кеш отдаёт Drops уже новый, пустой экземпляр.
var spills = struct {
	sync.Mutex
	m map[spillKey][]block.ItemStack
}{m: make(map[spillKey][]block.ItemStack)}

func stashSpill(k spillKey, items []block.ItemStack) {
	spills.Lock()
	spills.m[k] = append(spills.m[k], items...)
	spills.Unlock()
}

func takeSpill(k spillKey) []block.ItemStack {
	spills.Lock()
	defer spills.Unlock()
	items := spills.m[k]
	delete(spills.m, k)
	return items
}

// ChestBehavior - сундук: прочнее базового блока, держит взрывы
// и высыпает содержимое при разрушении.
type ChestBehavior struct {
	block.Passthrough

	mu       sync.Mutex
	contents []block.ItemStack
	opened   int
}

// Put кладёт стек в сундук. false - сундук полон.
func (c *ChestBehavior) Put(stack block.ItemStack) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.contents) >= ChestSlots {
		return false
	}
	c.contents = append(c.contents, stack)
	return true
}

// Contents возвращает копию содержимого
func (c *ChestBehavior) Contents() []block.ItemStack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]block.ItemStack(nil), c.contents...)
}

// Opened - сколько раз сундук открывали
func (c *ChestBehavior) Opened() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

func (c *ChestBehavior) Hardness(block.Site) float32 {
	return 2.5
}

func (c *ChestBehavior) PlayerRelativeHardness(_ block.Site, p block.Player) float32 {
	return block.RelativeHardness(2.5, p)
}

func (c *ChestBehavior) ExplosionResistance(block.Site, block.Entity, block.Explosion) float32 {
	return 12.5
}

func (c *ChestBehavior) BlockBounds(block.Site) cube.BBox {
	return chestBounds
}

func (c *ChestBehavior) CollisionBoxes(s block.Site, mask cube.BBox, _ block.Entity) []cube.BBox {
	return block.CollideBoxes(s.Pos, mask, chestBounds)
}

func (c *ChestBehavior) CollisionRayTrace(s block.Site, start, end mgl32.Vec3) (trace.BBoxResult, bool) {
	return block.TraceBoxes(s.Pos, start, end, chestBounds)
}

// Activated открывает сундук
func (c *ChestBehavior) Activated(block.Site, block.Player, cube.Face, mgl32.Vec3) bool {
	c.mu.Lock()
	c.opened++
	c.mu.Unlock()
	return true
}

// RemovedByPlayer снимает содержимое до удаления блока. При сборе оно
// дождётся Drops, без сбора (творческий режим) пропадает.
func (c *ChestBehavior) RemovedByPlayer(s block.Site, p block.Player, willHarvest bool) bool {
	c.mu.Lock()
	items := c.contents
	c.contents = nil
	c.mu.Unlock()

	if !s.Default.RemovedByPlayer(s, p, willHarvest) {
		c.mu.Lock()
		c.contents = append(items, c.contents...)
		c.mu.Unlock()
		return false
	}
	if willHarvest && len(items) > 0 {
		stashSpill(spillKey{world: s.World, pos: s.Pos}, items)
	}
	return true
}

// PlacedBy забывает несобранное содержимое прежнего сундука на этом месте
func (c *ChestBehavior) PlacedBy(s block.Site, placer block.Entity, item block.ItemStack) {
	takeSpill(spillKey{world: s.World, pos: s.Pos})
	s.Default.PlacedBy(s, placer, item)
}

// Drops - сам сундук и всё, что в нём лежало
func (c *ChestBehavior) Drops(s block.Site, fortune int) []block.ItemStack {
	drops := append(s.Default.Drops(s, fortune), c.Contents()...)
	return append(drops, takeSpill(spillKey{world: s.World, pos: s.Pos})...)
}

// Broken очищает содержимое после разрушения
func (c *ChestBehavior) Broken(s block.Site) {
	c.mu.Lock()
	c.contents = nil
	c.mu.Unlock()
	s.Default.Broken(s)
}
