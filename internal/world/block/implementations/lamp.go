package implementations

import (
	"sync"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultLampColor - тёплый белый
const DefaultLampColor = 0xFFE0A0

// LampPalette - цвета, по которым переключается лампа
var LampPalette = []int{DefaultLampColor, 0xFF4040, 0x40FF40, 0x4080FF}

// LampBehavior - лампа: светится и окрашивает блок.
type LampBehavior struct {
	block.Passthrough

	mu    sync.Mutex
	Color int
}

func (l *LampBehavior) LightValue(block.Site) int {
	return 15
}

func (l *LampBehavior) ColorMultiplier(s block.Site, renderPass int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Color == 0 {
		return s.Default.ColorMultiplier(s, renderPass)
	}
	return l.Color
}

// Activated переключает цвет на следующий из палитры
func (l *LampBehavior) Activated(block.Site, block.Player, cube.Face, mgl32.Vec3) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := 0
	for i, c := range LampPalette {
		if c == l.Color {
			next = (i + 1) % len(LampPalette)
			break
		}
	}
	l.Color = LampPalette[next]
	return true
}

// DestroyEffects рассыпает искры цвета лампы
func (l *LampBehavior) DestroyEffects(s block.Site, r block.EffectRenderer) bool {
	if r == nil {
		return false
	}
	centre := s.Pos.Vec3().Add(mgl32.Vec3{0.5, 0.5, 0.5})
	for _, off := range []mgl32.Vec3{{0.3, 0, 0}, {-0.3, 0, 0}, {0, 0, 0.3}, {0, 0, -0.3}} {
		r.AddParticle("spark", centre.Add(off))
	}
	return true
}
