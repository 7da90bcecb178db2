package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/lib/pq" // Register postgres driver

	"github.com/tendant/simple-detection-data/pkg/dataset"
)

// RecordStore persists built dataset records
type RecordStore interface {
	// Save replaces the stored records of a dataset
	Save(ctx context.Context, name string, records []dataset.Record) error
	// Load returns the stored records in image id order, or none
	Load(ctx context.Context, name string) ([]dataset.Record, error)
}

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]dataset.Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]dataset.Record)}
}

func (s *MemoryStore) Save(_ context.Context, name string, records []dataset.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = dataset.CloneRecords(records)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, name string) ([]dataset.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return dataset.CloneRecords(s.data[name]), nil
}

// OpenPostgres opens and pings a database
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// PostgresStore keeps one row per record in the dataset_records table
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store and its table if needed
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure dataset_records table: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS dataset_records (
			dataset TEXT NOT NULL,
			file_name TEXT NOT NULL,
			image_id INTEGER NOT NULL,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (dataset, file_name)
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create dataset_records table: %w", err)
	}
	return nil
}

// Save replaces the dataset's rows in one transaction
func (s *PostgresStore) Save(ctx context.Context, name string, records []dataset.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_records WHERE dataset = $1`, name); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	query := `
		INSERT INTO dataset_records (dataset, file_name, image_id, payload, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (dataset, file_name) DO UPDATE
		SET image_id = EXCLUDED.image_id,
		    payload = EXCLUDED.payload,
		    updated_at = NOW()
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", r.FileName, err)
		}
		if _, err := stmt.ExecContext(ctx, name, r.FileName, r.ImageID, payload); err != nil {
			return fmt.Errorf("failed to save record %s: %w", r.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// Load reads the dataset's rows ordered by image id
func (s *PostgresStore) Load(ctx context.Context, name string) ([]dataset.Record, error) {
	query := `SELECT payload FROM dataset_records WHERE dataset = $1 ORDER BY image_id`
	rows, err := s.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []dataset.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var r dataset.Record
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}
