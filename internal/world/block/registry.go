package block

import (
	"fmt"
	"sync/atomic"

	"github.com/annel0/blockbase/internal/logging"
)

// Registry - таблица фиксированной ёмкости VariantID -> Descriptor.
// Заполняется один раз в фазе настройки, затем только читается.
// Слот, однажды заполненный, не очищается и не переписывается.
type Registry struct {
	slots  []*Descriptor
	sealed atomic.Bool
	count  int

	namer  ItemNamer
	logger *logging.Logger
}

// RegistryOption настраивает Registry
type RegistryOption func(*Registry)

// WithItemNamer задаёт коллаборатора, получающего (id, label) при регистрации.
func WithItemNamer(n ItemNamer) RegistryOption {
	return func(r *Registry) { r.namer = n }
}

// WithRegistryLogger задаёт логгер реестра.
func WithRegistryLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry создаёт реестр на capacity слотов.
func NewRegistry(capacity int, opts ...RegistryOption) *Registry {
	if capacity < 0 {
		capacity = 0
	}
	r := &Registry{
		slots:  make([]*Descriptor, capacity),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register связывает id с типом поведения и подписью.
func (r *Registry) Register(id VariantID, t BehaviorType, label string) error {
	if r.sealed.Load() {
		return fmt.Errorf("register %d (%s): %w", id, t.Name, ErrRegistrySealed)
	}
	if id < 0 || int(id) >= len(r.slots) {
		return &OutOfRangeError{ID: id, Capacity: len(r.slots)}
	}
	if existing := r.slots[id]; existing != nil {
		return &DuplicateRegistrationError{ID: id, Existing: *existing, Rejected: t.Name}
	}

	r.slots[id] = &Descriptor{ID: id, Type: t, Label: label}
	r.count++
	r.logger.Debug("variant %d -> %s (%s)", id, t.Name, label)

	// Ошибка именования предмета не отменяет регистрацию
	if r.namer != nil {
		if err := r.namer.SetName(id, label); err != nil {
			r.logger.Warn("не удалось задать имя предмета для варианта %d (%s): %v", id, label, err)
		}
	}
	return nil
}

// MustRegister - Register, паникующий при ошибке. Для кода инициализации.
func (r *Registry) MustRegister(id VariantID, t BehaviorType, label string) {
	if err := r.Register(id, t, label); err != nil {
		panic(err)
	}
}

// Lookup возвращает дескриптор варианта. Никогда не падает:
// для незарегистрированных и выходящих за диапазон id возвращает false.
func (r *Registry) Lookup(id VariantID) (Descriptor, bool) {
	if id < 0 || int(id) >= len(r.slots) {
		return Descriptor{}, false
	}
	d := r.slots[id]
	if d == nil {
		return Descriptor{}, false
	}
	return *d, true
}

// Capacity возвращает число слотов.
func (r *Registry) Capacity() int {
	return len(r.slots)
}

// Len возвращает число занятых слотов.
func (r *Registry) Len() int {
	return r.count
}

// Seal завершает фазу настройки.
func (r *Registry) Seal() {
	if !r.sealed.Swap(true) {
		r.logger.Info("реестр закрыт: %d/%d вариантов", r.count, len(r.slots))
	}
}

// Sealed сообщает, завершена ли фаза настройки.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Descriptors возвращает занятые слоты в порядке id.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, r.count)
	for _, d := range r.slots {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}
