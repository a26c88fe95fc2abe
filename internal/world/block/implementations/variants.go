package implementations

import (
	"fmt"

	"github.com/annel0/blockbase/internal/world"
	"github.com/annel0/blockbase/internal/world/block"
)

// Идентификаторы вариантов встроенных поведений
const (
	FurnaceVariant   block.VariantID = 0
	ChestVariant     block.VariantID = 1
	LampVariant      block.VariantID = 2
	PipeVariant      block.VariantID = 3
	GlassPaneVariant block.VariantID = 4
)

// MinCapacity - минимальная ёмкость реестра для RegisterAll.
const MinCapacity = int(GlassPaneVariant) + 1

// Types возвращает встроенные типы поведения по вариантам.
func Types() map[block.VariantID]block.BehaviorType {
	return map[block.VariantID]block.BehaviorType{
		FurnaceVariant:   block.TypeOf("Furnace", func() block.Behavior { return &FurnaceBehavior{} }),
		ChestVariant:     block.TypeOf("Chest", func() block.Behavior { return &ChestBehavior{} }),
		LampVariant:      block.TypeOf("Lamp", func() block.Behavior { return &LampBehavior{Color: DefaultLampColor} }),
		PipeVariant:      block.TypeOf("Pipe", func() block.Behavior { return &PipeBehavior{} }),
		GlassPaneVariant: block.TypeOf("GlassPane", func() block.Behavior { return &GlassPaneBehavior{} }),
	}
}

var labels = map[block.VariantID]string{
	FurnaceVariant:   "furnace",
	ChestVariant:     "chest",
	LampVariant:      "lamp",
	PipeVariant:      "pipe",
	GlassPaneVariant: "glass_pane",
}

// RegisterAll регистрирует встроенные поведения в реестре.
func RegisterAll(reg *block.Registry) error {
	types := Types()
	for id := block.VariantID(0); int(id) < MinCapacity; id++ {
		if err := reg.Register(id, types[id], labels[id]); err != nil {
			return fmt.Errorf("register %s: %w", labels[id], err)
		}
	}
	return nil
}

// SeedLayers - слои генератора для начального заполнения мира.
func SeedLayers() []world.Layer {
	return []world.Layer{
		{Threshold: 0.35, Variant: GlassPaneVariant},
		{Threshold: 0.5, Variant: PipeVariant},
		{Threshold: 0.62, Variant: ChestVariant},
		{Threshold: 0.72, Variant: FurnaceVariant},
		{Threshold: 0.8, Variant: LampVariant},
	}
}
