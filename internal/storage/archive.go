package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/klauspost/compress/zstd"
)

// archiveMagic открывает каждый архив вариантов
var archiveMagic = []byte("BBV1")

// recordSize - x, y, z (int32) и вариант (uint16)
const recordSize = 4*3 + 2

// importBatch - сколько записей импорт отдаёт в BatchSave за раз
const importBatch = 4096

var (
	// ErrBadArchive возвращается для потока, не являющегося архивом вариантов
	ErrBadArchive = errors.New("not a variant archive")
	// ErrPosOutOfRange - координата не помещается в int32 записи архива
	ErrPosOutOfRange = errors.New("position out of archive range")
)

// Export пишет содержимое хранилища в w архивом zstd. Возвращает число записей.
func Export(ctx context.Context, store VariantStore, w io.Writer) (int, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, fmt.Errorf("zstd encoder: %w", err)
	}

	if _, err := enc.Write(archiveMagic); err != nil {
		enc.Close()
		return 0, err
	}

	count := 0
	rec := make([]byte, recordSize)
	err = store.Scan(ctx, func(pos cube.Pos, id block.VariantID) error {
		for _, c := range pos {
			if c < math.MinInt32 || c > math.MaxInt32 {
				return fmt.Errorf("%v: %w", pos, ErrPosOutOfRange)
			}
		}
		binary.BigEndian.PutUint32(rec[0:], uint32(int32(pos[0])))
		binary.BigEndian.PutUint32(rec[4:], uint32(int32(pos[1])))
		binary.BigEndian.PutUint32(rec[8:], uint32(int32(pos[2])))
		binary.BigEndian.PutUint16(rec[12:], uint16(id))
		if _, err := enc.Write(rec); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		enc.Close()
		return count, fmt.Errorf("export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return count, fmt.Errorf("zstd flush: %w", err)
	}
	return count, nil
}

// Import читает архив Export и сохраняет записи в store пачками.
func Import(ctx context.Context, store VariantStore, r io.Reader) (int, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	magic := make([]byte, len(archiveMagic))
	if _, err := io.ReadFull(br, magic); err != nil || !bytes.Equal(magic, archiveMagic) {
		return 0, ErrBadArchive
	}

	count := 0
	batch := make(map[cube.Pos]block.VariantID, importBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.BatchSave(ctx, batch); err != nil {
			return err
		}
		count += len(batch)
		batch = make(map[cube.Pos]block.VariantID, importBatch)
		return nil
	}

	rec := make([]byte, recordSize)
	for {
		_, err := io.ReadFull(br, rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("%w: truncated record", ErrBadArchive)
		}
		pos := cube.Pos{
			int(int32(binary.BigEndian.Uint32(rec[0:]))),
			int(int32(binary.BigEndian.Uint32(rec[4:]))),
			int(int32(binary.BigEndian.Uint32(rec[8:]))),
		}
		batch[pos] = block.VariantID(binary.BigEndian.Uint16(rec[12:]))
		if len(batch) >= importBatch {
			if err := flush(); err != nil {
				return count, fmt.Errorf("import: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		return count, fmt.Errorf("import: %w", err)
	}
	return count, nil
}
