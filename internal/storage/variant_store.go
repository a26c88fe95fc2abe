// Package storage хранит варианты блоков мира.
package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
)

// VariantStore определяет интерфейс для сохранения вариантов блоков по позициям.
// Хранилище ничего не знает о поведениях: только позиция и номер варианта.
type VariantStore interface {
	// Save сохраняет вариант блока в позиции.
	Save(ctx context.Context, pos cube.Pos, id block.VariantID) error

	// Load загружает вариант. false - в позиции ничего не сохранено.
	Load(ctx context.Context, pos cube.Pos) (block.VariantID, bool, error)

	// Delete удаляет вариант из позиции. Отсутствие записи не ошибка.
	Delete(ctx context.Context, pos cube.Pos) error

	// BatchSave сохраняет несколько позиций разом (генерация, импорт).
	BatchSave(ctx context.Context, variants map[cube.Pos]block.VariantID) error

	// Scan обходит все сохранённые позиции. Ошибка fn прерывает обход.
	Scan(ctx context.Context, fn func(pos cube.Pos, id block.VariantID) error) error

	// Close закрывает хранилище.
	Close() error
}

// KeyPrefix - префикс ключей вариантов в KV-хранилищах и сообщениях инвалидации
const KeyPrefix = "variant:"

// ErrBadKey возвращается при разборе ключа не из этого пакета
var ErrBadKey = errors.New("malformed variant key")

// ErrBadValue возвращается, если значение не похоже на закодированный вариант
var ErrBadValue = errors.New("malformed variant value")

// PosKey возвращает ключ позиции: variant:x:y:z
func PosKey(pos cube.Pos) string {
	return fmt.Sprintf("%s%d:%d:%d", KeyPrefix, pos[0], pos[1], pos[2])
}

// ParsePosKey разбирает ключ, созданный PosKey
func ParsePosKey(key string) (cube.Pos, error) {
	rest, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return cube.Pos{}, fmt.Errorf("%q: %w", key, ErrBadKey)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return cube.Pos{}, fmt.Errorf("%q: %w", key, ErrBadKey)
	}
	var pos cube.Pos
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return cube.Pos{}, fmt.Errorf("%q: %w", key, ErrBadKey)
		}
		pos[i] = v
	}
	return pos, nil
}

// EncodeVariant кодирует вариант в два байта big-endian
func EncodeVariant(id block.VariantID) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(id))
	return buf
}

// DecodeVariant - обратное к EncodeVariant
func DecodeVariant(b []byte) (block.VariantID, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("%d bytes: %w", len(b), ErrBadValue)
	}
	return block.VariantID(binary.BigEndian.Uint16(b)), nil
}

// checkVariant отсекает номера, не помещающиеся в метаданные блока
func checkVariant(id block.VariantID) error {
	if id < 0 || id > block.MaxVariantID {
		return fmt.Errorf("вариант %d вне диапазона 0..%d", id, block.MaxVariantID)
	}
	return nil
}
