// Package item хранит имена предметов, соответствующих вариантам блоков.
package item

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/elliotchance/orderedmap/v2"
)

// NamePrefix - префикс ключа локализации блока
const NamePrefix = "tile."

// ErrEmptyLabel возвращается при регистрации пустого имени
var ErrEmptyLabel = errors.New("empty item label")

// NameTable сопоставляет варианту блока имя предмета.
// Порядок обхода совпадает с порядком регистрации.
type NameTable struct {
	mu    sync.RWMutex
	names *orderedmap.OrderedMap[block.VariantID, string]
}

// NewNameTable создаёт пустую таблицу имён
func NewNameTable() *NameTable {
	return &NameTable{names: orderedmap.NewOrderedMap[block.VariantID, string]()}
}

// SetName реализует block.ItemNamer.
func (t *NameTable) SetName(id block.VariantID, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("variant %d: %w", id, ErrEmptyLabel)
	}
	if !strings.HasPrefix(label, NamePrefix) {
		label = NamePrefix + label
	}

	t.mu.Lock()
	t.names.Set(id, label)
	t.mu.Unlock()
	return nil
}

// Name возвращает имя предмета варианта
func (t *NameTable) Name(id block.VariantID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.names.Get(id)
}

// DisplayName возвращает имя стека; для безымянного варианта - tile.unknown.<id>
func (t *NameTable) DisplayName(stack block.ItemStack) string {
	if name, ok := t.Name(stack.Variant); ok {
		return name
	}
	return fmt.Sprintf("%sunknown.%d", NamePrefix, stack.Variant)
}

// Len - количество имён
func (t *NameTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.names.Len()
}

// Entry - пара вариант/имя
type Entry struct {
	Variant block.VariantID `json:"variant"`
	Name    string          `json:"name"`
}

// Entries возвращает имена в порядке регистрации
func (t *NameTable) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, t.names.Len())
	for el := t.names.Front(); el != nil; el = el.Next() {
		out = append(out, Entry{Variant: el.Key, Name: el.Value})
	}
	return out
}
