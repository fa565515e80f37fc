package semantic

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/Ramdan0505/radlab-preinvest/internal/model"
	"github.com/Ramdan0505/radlab-preinvest/pkg/errkind"
)

// SQLiteStore persists index entries in a local SQLite database. Nearest
// neighbors are computed brute force over the case's rows; corpora here are
// small enough that an ANN index would be overkill.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	const op = "semantic.NewSQLiteStore"

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errkind.E(errkind.KindExternalService, op, "create database directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errkind.E(errkind.KindExternalService, op, "open database", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errkind.E(errkind.KindExternalService, op, "set pragma", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS index_entries (
		doc_id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		text TEXT NOT NULL,
		metadata TEXT,
		vector BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_case_id ON index_entries(case_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errkind.E(errkind.KindExternalService, op, "init schema", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, entries []model.IndexEntry) error {
	const op = "semantic.SQLiteStore.Add"

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errkind.E(errkind.KindExternalService, op, "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_entries (doc_id, case_id, text, metadata, vector)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errkind.E(errkind.KindExternalService, op, "prepare insert", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		metadataJSON, err := json.Marshal(entry.Metadata)
		if err != nil {
			metadataJSON = []byte("{}")
		}
		if _, err := stmt.ExecContext(ctx, entry.DocID, entry.CaseID, entry.Text,
			string(metadataJSON), encodeVector(entry.Vector)); err != nil {
			return errkind.E(errkind.KindExternalService, op, "insert entry", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errkind.E(errkind.KindExternalService, op, "commit", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, caseID string, vector []float32, topK int) ([]SearchResult, error) {
	const op = "semantic.SQLiteStore.Query"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, text, metadata, vector
		FROM index_entries
		WHERE case_id = ?
	`, caseID)
	if err != nil {
		return nil, errkind.E(errkind.KindExternalService, op, "query entries", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			docID        string
			text         string
			metadataJSON sql.NullString
			blob         []byte
		)
		if err := rows.Scan(&docID, &text, &metadataJSON, &blob); err != nil {
			return nil, errkind.E(errkind.KindExternalService, op, "scan entry", err)
		}

		metadata := map[string]string{}
		if metadataJSON.Valid && metadataJSON.String != "" {
			_ = json.Unmarshal([]byte(metadataJSON.String), &metadata)
		}

		results = append(results, SearchResult{
			ID:       docID,
			Distance: cosineDistance(vector, decodeVector(blob)),
			Text:     text,
			Metadata: metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errkind.E(errkind.KindExternalService, op, "iterate entries", err)
	}
	return nearest(results, topK), nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Vectors are stored as little-endian float32 blobs.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
