package block

import (
	"errors"
	"fmt"
)

// ErrRegistrySealed возвращается при регистрации после завершения фазы настройки.
var ErrRegistrySealed = errors.New("block registry is sealed")

// OutOfRangeError - регистрация с VariantID вне [0, capacity).
type OutOfRangeError struct {
	ID       VariantID
	Capacity int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("variant id %d out of range [0, %d)", e.ID, e.Capacity)
}

// DuplicateRegistrationError - слот уже занят другим типом.
type DuplicateRegistrationError struct {
	ID       VariantID
	Existing Descriptor
	Rejected string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("variant id %d already registered to %q, cannot register %q",
		e.ID, e.Existing.Type.Name, e.Rejected)
}

// InstantiationError - фабрика поведения не смогла создать экземпляр.
type InstantiationError struct {
	ID   VariantID
	Type string
	Err  error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("cannot instantiate behavior %q for variant %d: %v", e.Type, e.ID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}
