package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/dgraph-io/badger/v3"
	"github.com/ethaniccc/float32-cube/cube"
)

// ErrStoreClosed возвращается при обращении к закрытому хранилищу
var ErrStoreClosed = errors.New("хранилище не готово")

// BadgerVariantStore хранит варианты во встроенной BadgerDB.
// Ключ - PosKey(pos), значение - EncodeVariant(id).
type BadgerVariantStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerVariantStore открывает хранилище в каталоге dataPath/variants.
// Пустой dataPath - хранилище в памяти (тесты, CLI seed --dry-run).
func NewBadgerVariantStore(dataPath string) (*BadgerVariantStore, error) {
	var opts badger.Options
	dbPath := ""
	if dataPath == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dbPath = filepath.Join(dataPath, "variants")
		opts = badger.DefaultOptions(dbPath)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerVariantStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Path возвращает каталог БД (пусто для хранилища в памяти)
func (s *BadgerVariantStore) Path() string {
	return s.dbPath
}

func (s *BadgerVariantStore) Save(_ context.Context, pos cube.Pos, id block.VariantID) error {
	if err := checkVariant(id); err != nil {
		return err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrStoreClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(PosKey(pos)), EncodeVariant(id))
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

func (s *BadgerVariantStore) Load(_ context.Context, pos cube.Pos) (block.VariantID, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return 0, false, ErrStoreClosed
	}

	var (
		id    block.VariantID
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(PosKey(pos)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id, err = DecodeVariant(val)
			found = err == nil
			return err
		})
	})
	if err != nil {
		return 0, false, fmt.Errorf("ошибка чтения %s из BadgerDB: %w", PosKey(pos), err)
	}
	return id, found, nil
}

func (s *BadgerVariantStore) Delete(_ context.Context, pos cube.Pos) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrStoreClosed
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(PosKey(pos)))
	})
}

// BatchSave пишет через WriteBatch: большие генерации не упираются в лимит транзакции
func (s *BadgerVariantStore) BatchSave(_ context.Context, variants map[cube.Pos]block.VariantID) error {
	for _, id := range variants {
		if err := checkVariant(id); err != nil {
			return err
		}
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrStoreClosed
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for pos, id := range variants {
		if err := wb.Set([]byte(PosKey(pos)), EncodeVariant(id)); err != nil {
			return fmt.Errorf("ошибка пакетной записи: %w", err)
		}
	}
	return wb.Flush()
}

func (s *BadgerVariantStore) Scan(ctx context.Context, fn func(pos cube.Pos, id block.VariantID) error) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrStoreClosed
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(KeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			pos, err := ParsePosKey(string(item.Key()))
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			id, err := DecodeVariant(val)
			if err != nil {
				return fmt.Errorf("%s: %w", item.Key(), err)
			}
			if err := fn(pos, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close закрывает хранилище данных
func (s *BadgerVariantStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	return s.db.Close()
}
