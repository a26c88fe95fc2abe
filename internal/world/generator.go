package world

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/annel0/blockbase/internal/util"
	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
)

// Layer - порог шума и вариант, который ставится выше него
type Layer struct {
	Threshold float64
	Variant   block.VariantID
}

// Generator заполняет область мира вариантами по шуму Перлина.
// Слои проверяются от последнего к первому: побеждает самый высокий
// порог, который шум превысил. Ниже первого порога блок не ставится.
type Generator struct {
	Seed       int64   // Сид для генерации шума
	NoiseScale float64 // Масштаб шума
	Layers     []Layer
	// Scatter - вероятность заменить блок случайным слоем (декор)
	Scatter float64

	noise *util.Noise
}

// NewGenerator создаёт генератор с указанным сидом и слоями
func NewGenerator(seed int64, layers []Layer) *Generator {
	return &Generator{
		Seed:       seed,
		NoiseScale: 0.05, // Настройка сглаженности
		Layers:     layers,
		Scatter:    0.02,
		noise:      util.NewNoise(seed),
	}
}

// VariantAt возвращает вариант для колонки (x, z) без учёта разброса
func (g *Generator) VariantAt(x, z int) (block.VariantID, bool) {
	v := g.noise.Noise2D(float64(x)*g.NoiseScale, float64(z)*g.NoiseScale)
	for i := len(g.Layers) - 1; i >= 0; i-- {
		if v >= g.Layers[i].Threshold {
			return g.Layers[i].Variant, true
		}
	}
	return 0, false
}

// Region генерирует варианты для прямоугольника [from, to] на высоте from.Y()
func (g *Generator) Region(from, to cube.Pos) map[cube.Pos]block.VariantID {
	x0, x1 := order(from.X(), to.X())
	z0, z1 := order(from.Z(), to.Z())
	y := from.Y()

	// Для каждой области свой детерминированный rng
	rng := rand.New(rand.NewSource(g.Seed + int64(x0*31) + int64(z0*17)))

	out := make(map[cube.Pos]block.VariantID)
	for z := z0; z <= z1; z++ {
		for x := x0; x <= x1; x++ {
			id, ok := g.VariantAt(x, z)
			if !ok {
				continue
			}
			if len(g.Layers) > 0 && rng.Float64() < g.Scatter {
				id = g.Layers[rng.Intn(len(g.Layers))].Variant
			}
			out[cube.Pos{x, y, z}] = id
		}
	}
	return out
}

// Populate генерирует область и записывает её в мир
func (g *Generator) Populate(ctx context.Context, w *World, from, to cube.Pos) (int, error) {
	variants := g.Region(from, to)
	if err := w.SetVariants(ctx, variants); err != nil {
		return 0, fmt.Errorf("генерация %v..%v: %w", from, to, err)
	}
	return len(variants), nil
}

func order(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
