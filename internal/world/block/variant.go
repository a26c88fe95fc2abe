package block

import "fmt"

// VariantID - метаданные блока: небольшой плотный индекс 0..capacity-1,
// выбирающий поведение размещённого экземпляра.
type VariantID int

// MaxVariantID - верхняя граница, которую хранилища умеют сохранять (uint16).
const MaxVariantID VariantID = 1<<16 - 1

// Factory создаёт новый экземпляр поведения без аргументов.
type Factory func() Behavior

// BehaviorType описывает тип поведения: имя для логов/API и фабрику.
type BehaviorType struct {
	Name string
	New  Factory
}

// TypeOf - короткий конструктор BehaviorType.
func TypeOf(name string, f Factory) BehaviorType {
	return BehaviorType{Name: name, New: f}
}

// Descriptor - неизменяемая запись реестра.
type Descriptor struct {
	ID    VariantID
	Type  BehaviorType
	Label string
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%d:%s(%s)", d.ID, d.Type.Name, d.Label)
}
