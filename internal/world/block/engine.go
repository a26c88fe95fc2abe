package block

import (
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"
)

// Entity - сущность мира, участвующая в коллизиях и взрывах.
type Entity interface {
	Position() mgl32.Vec3
	BBox() cube.BBox
}

// Player - игрок, взаимодействующий с блоком.
type Player interface {
	Entity
	Name() string
	// CanHarvest сообщает, добудет ли текущий инструмент этот блок.
	CanHarvest() bool
	// DigSpeed - множитель скорости копания текущим инструментом.
	DigSpeed() float32
}

// ItemStack - стек предметов блока. Вариант совпадает с метаданными блока.
type ItemStack struct {
	Variant VariantID
	Count   int
}

// Explosion описывает взрыв, спрашивающий сопротивление блока.
type Explosion struct {
	Centre mgl32.Vec3
	Size   float32
}

// EffectRenderer получает частицы, добавляемые блоком.
type EffectRenderer interface {
	AddParticle(name string, pos mgl32.Vec3)
}

// unitBox - полный куб блока в локальных координатах.
var unitBox = cube.Box(0, 0, 0, 1, 1, 1)

// FullCube возвращает полный куб блока в локальных координатах.
func FullCube() cube.BBox {
	return unitBox
}
