package docstore

import (
	"database/sql"
	"errors"
	"fmt"

	"xplorer/internal/apperr"
)

// VectorStore stores serialized vector index payloads in the vectors table,
// keyed by sanitized paper id.
type VectorStore struct {
	db *sql.DB
}

func NewVectorStore(db *sql.DB) *VectorStore {
	return &VectorStore{db: db}
}

// Get returns the stored payload for a paper.
func (s *VectorStore) Get(id string) (string, error) {
	const op = "docstore.VectorStore.Get"
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM vectors WHERE id = ?`, SanitizeKey(id)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.New(apperr.NotFound, op, "vector index for %s not in store", id)
	}
	if err != nil {
		return "", fmt.Errorf("query vector index %s: %w", id, err)
	}
	return payload, nil
}

// Put upserts the payload for a paper.
func (s *VectorStore) Put(id, payload string) error {
	_, err := s.db.Exec(
		`INSERT INTO vectors (id, payload, timestamp) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, timestamp = CURRENT_TIMESTAMP`,
		SanitizeKey(id), payload)
	if err != nil {
		return fmt.Errorf("upsert vector index %s: %w", id, err)
	}
	return nil
}

// Delete removes the payload for a paper. Deleting an absent row succeeds,
// so eviction cascades can retry safely.
func (s *VectorStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM vectors WHERE id = ?`, SanitizeKey(id)); err != nil {
		return fmt.Errorf("delete vector index %s: %w", id, err)
	}
	return nil
}
