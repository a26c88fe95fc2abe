package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/google/uuid"
)

// Типы событий мира
const (
	EventVariantSet   = "variant_set"
	EventBlockRemoved = "block_removed"
)

// blockEventVersion - версия схемы BlockEvent
const blockEventVersion = 1

// BlockEvent - полезная нагрузка событий изменения блока
type BlockEvent struct {
	X       int             `json:"x"`
	Y       int             `json:"y"`
	Z       int             `json:"z"`
	Variant block.VariantID `json:"variant"`
	// Previous - вариант до изменения; HadPrevious=false, если позиция была пуста
	Previous    block.VariantID `json:"previous"`
	HadPrevious bool            `json:"had_previous"`
}

// Pos возвращает позицию события
func (e BlockEvent) Pos() cube.Pos {
	return cube.Pos{e.X, e.Y, e.Z}
}

// NewBlockEnvelope упаковывает BlockEvent в Envelope
func NewBlockEnvelope(source, eventType string, ev BlockEvent) (*Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("кодирование %s: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   blockEventVersion,
		Priority:  5, // изменения мира не дропаются при переполнении
		Payload:   payload,
	}, nil
}

// DecodeBlockEvent достаёт BlockEvent из Envelope
func DecodeBlockEvent(env *Envelope) (BlockEvent, error) {
	var ev BlockEvent
	if env.Version != blockEventVersion {
		return ev, fmt.Errorf("неизвестная версия %s: %d", env.EventType, env.Version)
	}
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return ev, fmt.Errorf("разбор %s: %w", env.EventType, err)
	}
	return ev, nil
}
