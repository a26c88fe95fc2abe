package block

import (
	"github.com/ethaniccc/float32-cube/cube"
)

// WorldState определяет интерфейс мира, которым пользуется диспетчер.
// Мир владеет позициями и хранением вариантов; диспетчер только читает
// вариант и, в поведении по умолчанию, может убрать блок.
type WorldState interface {
	// Variant возвращает вариант блока в позиции. false - блока нет.
	Variant(pos cube.Pos) (VariantID, bool)

	// RemoveBlock убирает блок из позиции (замена на воздух).
	RemoveBlock(pos cube.Pos) bool
}

// ItemNamer получает (id, label) при каждой успешной регистрации
// и привязывает человекочитаемое имя к предмету этого варианта.
type ItemNamer interface {
	SetName(id VariantID, label string) error
}
