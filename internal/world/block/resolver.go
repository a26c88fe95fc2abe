package block

import (
	"errors"
	"fmt"

	"github.com/ethaniccc/float32-cube/cube"
)

// InstanceSource выдаёт экземпляр поведения для позиции и варианта.
// (nil, nil) означает, что вариант не зарегистрирован.
type InstanceSource interface {
	Resolve(pos cube.Pos, id VariantID) (Behavior, error)
}

var (
	errNilFactory  = errors.New("behavior type has no factory")
	errNilInstance = errors.New("factory returned nil")
)

// Resolver создаёт экземпляры поведения по дескриптору реестра.
// Состояния по позициям не хранит.
type Resolver struct {
	registry *Registry
}

// NewResolver создаёт резолвер поверх реестра.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Registry возвращает реестр резолвера.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Resolve создаёт новый экземпляр поведения для варианта id в позиции pos.
func (r *Resolver) Resolve(pos cube.Pos, id VariantID) (Behavior, error) {
	desc, ok := r.registry.Lookup(id)
	if !ok {
		return nil, nil
	}

	b, err := construct(desc)
	if err != nil {
		return nil, &InstantiationError{ID: id, Type: desc.Type.Name, Err: err}
	}
	if binder, ok := b.(Binder); ok {
		binder.BindPosition(pos)
	}
	return b, nil
}

// construct вызывает фабрику, превращая панику в ошибку.
func construct(desc Descriptor) (b Behavior, err error) {
	if desc.Type.New == nil {
		return nil, errNilFactory
	}
	defer func() {
		if rec := recover(); rec != nil {
			b = nil
			err = fmt.Errorf("factory panic: %v", rec)
		}
	}()

	b = desc.Type.New()
	if b == nil {
		return nil, errNilInstance
	}
	return b, nil
}
