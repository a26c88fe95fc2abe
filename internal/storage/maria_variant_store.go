package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	_ "github.com/go-sql-driver/mysql"
)

// MariaVariantStore реализует VariantStore для базы данных MariaDB/MySQL.
// Использует таблицу block_variants для хранения вариантов блоков.
type MariaVariantStore struct {
	db *sql.DB
}

// NewMariaVariantStore создает хранилище вариантов для MariaDB.
// Автоматически создает таблицу, если она не существует.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaVariantStore(dsn string) (*MariaVariantStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	store := &MariaVariantStore{db: db}

	if err := store.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return store, nil
}

// createTable создает таблицу block_variants, если она не существует.
func (r *MariaVariantStore) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS block_variants (
			x          INT               NOT NULL,
			y          INT               NOT NULL,
			z          INT               NOT NULL,
			variant    SMALLINT UNSIGNED NOT NULL,
			updated_at TIMESTAMP         DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE         CURRENT_TIMESTAMP,
			PRIMARY KEY (x, y, z)
		) ENGINE=InnoDB
	`

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы block_variants: %w", err)
	}
	return nil
}

const upsertVariantQuery = `
	INSERT INTO block_variants (x, y, z, variant)
	VALUES (?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		variant = VALUES(variant),
		updated_at = CURRENT_TIMESTAMP
`

// Save сохраняет вариант через INSERT ... ON DUPLICATE KEY UPDATE.
func (r *MariaVariantStore) Save(ctx context.Context, pos cube.Pos, id block.VariantID) error {
	if err := checkVariant(id); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, upsertVariantQuery, pos[0], pos[1], pos[2], int(id)); err != nil {
		return fmt.Errorf("ошибка сохранения варианта в %v: %w", pos, err)
	}
	return nil
}

// Load загружает вариант из базы данных.
func (r *MariaVariantStore) Load(ctx context.Context, pos cube.Pos) (block.VariantID, bool, error) {
	query := `SELECT variant FROM block_variants WHERE x = ? AND y = ? AND z = ?`

	var id int
	err := r.db.QueryRowContext(ctx, query, pos[0], pos[1], pos[2]).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ошибка загрузки варианта в %v: %w", pos, err)
	}
	return block.VariantID(id), true, nil
}

// Delete удаляет вариант. Отсутствие строки не ошибка.
func (r *MariaVariantStore) Delete(ctx context.Context, pos cube.Pos) error {
	query := `DELETE FROM block_variants WHERE x = ? AND y = ? AND z = ?`

	if _, err := r.db.ExecContext(ctx, query, pos[0], pos[1], pos[2]); err != nil {
		return fmt.Errorf("ошибка удаления варианта в %v: %w", pos, err)
	}
	return nil
}

// BatchSave сохраняет варианты в одной транзакции.
func (r *MariaVariantStore) BatchSave(ctx context.Context, variants map[cube.Pos]block.VariantID) error {
	if len(variants) == 0 {
		return nil // Нечего сохранять
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() // Откат в случае ошибки

	stmt, err := tx.PrepareContext(ctx, upsertVariantQuery)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for pos, id := range variants {
		if err := checkVariant(id); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, pos[0], pos[1], pos[2], int(id)); err != nil {
			return fmt.Errorf("ошибка сохранения варианта в %v в batch: %w", pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// Scan обходит таблицу целиком
func (r *MariaVariantStore) Scan(ctx context.Context, fn func(pos cube.Pos, id block.VariantID) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT x, y, z, variant FROM block_variants`)
	if err != nil {
		return fmt.Errorf("ошибка чтения block_variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pos cube.Pos
			id  int
		)
		if err := rows.Scan(&pos[0], &pos[1], &pos[2], &id); err != nil {
			return err
		}
		if err := fn(pos, block.VariantID(id)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close закрывает соединение с базой данных.
func (r *MariaVariantStore) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
