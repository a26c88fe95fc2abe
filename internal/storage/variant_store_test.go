package storage

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testVariantStore прогоняет общий набор проверок для любого VariantStore
func testVariantStore(t *testing.T, store VariantStore) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		pos := cube.Pos{10, 64, -20}
		require.NoError(t, store.Save(ctx, pos, 7))

		id, found, err := store.Load(ctx, pos)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, block.VariantID(7), id)
	})

	t.Run("Load Missing", func(t *testing.T) {
		id, found, err := store.Load(ctx, cube.Pos{999, 0, 999})
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, block.VariantID(0), id)
	})

	t.Run("Overwrite", func(t *testing.T) {
		pos := cube.Pos{1, 2, 3}
		require.NoError(t, store.Save(ctx, pos, 1))
		require.NoError(t, store.Save(ctx, pos, block.MaxVariantID))
		id, _, err := store.Load(ctx, pos)
		require.NoError(t, err)
		assert.Equal(t, block.VariantID(block.MaxVariantID), id)
	})

	t.Run("Out Of Range", func(t *testing.T) {
		assert.Error(t, store.Save(ctx, cube.Pos{}, -1))
		assert.Error(t, store.Save(ctx, cube.Pos{}, block.MaxVariantID+1))
	})

	t.Run("Delete", func(t *testing.T) {
		pos := cube.Pos{-5, 0, 5}
		require.NoError(t, store.Save(ctx, pos, 3))
		require.NoError(t, store.Delete(ctx, pos))
		_, found, err := store.Load(ctx, pos)
		require.NoError(t, err)
		assert.False(t, found)

		// Повторное удаление не ошибка
		assert.NoError(t, store.Delete(ctx, pos))
	})

	t.Run("BatchSave and Scan", func(t *testing.T) {
		batch := map[cube.Pos]block.VariantID{
			{100, 0, 100}: 0,
			{101, 0, 100}: 1,
			{102, 0, 100}: 2,
		}
		require.NoError(t, store.BatchSave(ctx, batch))

		seen := make(map[cube.Pos]block.VariantID)
		require.NoError(t, store.Scan(ctx, func(pos cube.Pos, id block.VariantID) error {
			seen[pos] = id
			return nil
		}))
		for pos, id := range batch {
			assert.Equal(t, id, seen[pos], "позиция %v", pos)
		}

		stop := errors.New("stop")
		calls := 0
		err := store.Scan(ctx, func(cube.Pos, block.VariantID) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}

func TestMemoryVariantStore(t *testing.T) {
	store := NewMemoryVariantStore()
	defer store.Close()
	testVariantStore(t, store)
}

func TestMemoryVariantStore_CancelledContext(t *testing.T) {
	store := NewMemoryVariantStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Save(ctx, cube.Pos{}, 1), context.Canceled)
	assert.Equal(t, 0, store.Len())
}

func TestBadgerVariantStore(t *testing.T) {
	store, err := NewBadgerVariantStore("")
	require.NoError(t, err)
	defer store.Close()
	testVariantStore(t, store)
}

func TestBadgerVariantStore_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewBadgerVariantStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, cube.Pos{4, 5, 6}, 42))
	require.NoError(t, store.Close())

	// Закрытое хранилище отказывает
	assert.ErrorIs(t, store.Save(ctx, cube.Pos{}, 1), ErrStoreClosed)
	assert.NoError(t, store.Close())

	reopened, err := NewBadgerVariantStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	id, found, err := reopened.Load(ctx, cube.Pos{4, 5, 6})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, block.VariantID(42), id)
}

func TestPosKey(t *testing.T) {
	pos := cube.Pos{-12, 70, 3}
	key := PosKey(pos)
	assert.Equal(t, "variant:-12:70:3", key)

	parsed, err := ParsePosKey(key)
	require.NoError(t, err)
	assert.Equal(t, pos, parsed)

	for _, bad := range []string{"chunk:1:2", "variant:1:2", "variant:a:b:c", ""} {
		_, err := ParsePosKey(bad)
		assert.ErrorIs(t, err, ErrBadKey, bad)
	}
}

func TestDecodeVariant(t *testing.T) {
	id, err := DecodeVariant(EncodeVariant(513))
	require.NoError(t, err)
	assert.Equal(t, block.VariantID(513), id)

	_, err = DecodeVariant([]byte{1})
	assert.ErrorIs(t, err, ErrBadValue)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryVariantStore()
	want := make(map[cube.Pos]block.VariantID)
	for x := -50; x < 50; x++ {
		for z := 0; z < 60; z++ {
			want[cube.Pos{x, 64, z}] = block.VariantID((x*31 + z) & 0xF)
		}
	}
	require.NoError(t, src.BatchSave(ctx, want))

	var buf bytes.Buffer
	n, err := Export(ctx, src, &buf)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)

	dst, err := NewBadgerVariantStore("")
	require.NoError(t, err)
	defer dst.Close()

	n, err = Import(ctx, dst, &buf)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)

	got := make(map[cube.Pos]block.VariantID)
	require.NoError(t, dst.Scan(ctx, func(pos cube.Pos, id block.VariantID) error {
		got[pos] = id
		return nil
	}))
	assert.Equal(t, want, got)
}

func TestExport_RejectsPositionOutsideInt32(t *testing.T) {
	if math.MaxInt == math.MaxInt32 {
		t.Skip("int шириной 32 бита")
	}
	ctx := context.Background()
	src := NewMemoryVariantStore()
	require.NoError(t, src.Save(ctx, cube.Pos{0, 64, 0}, 1))
	far := int64(math.MaxInt32) + 1
	require.NoError(t, src.Save(ctx, cube.Pos{int(far), 64, 0}, 2))

	var buf bytes.Buffer
	_, err := Export(ctx, src, &buf)
	assert.ErrorIs(t, err, ErrPosOutOfRange)
}

func TestImport_RejectsGarbage(t *testing.T) {
	_, err := Import(context.Background(), NewMemoryVariantStore(), bytes.NewReader([]byte("definitely not zstd")))
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	store, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryVariantStore{}, store)

	_, err = Open(context.Background(), Config{Backend: "floppy"})
	assert.Error(t, err)
}
