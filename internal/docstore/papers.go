// Package docstore persists parsed papers and their serialized vector
// indexes in SQLite, and implements the eviction queries for the
// least-recently-used sweep of the persistent tier.
package docstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"xplorer/internal/apperr"
	"xplorer/internal/paper"
)

// refreshRate is the fraction of reads that bump a paper's timestamp.
// Refreshing every read would write on the hot path for no eviction
// benefit; a sampled refresh keeps frequently read papers young enough.
const refreshRate = 0.1

// SanitizeKey normalizes an arXiv identifier for use as a storage key.
func SanitizeKey(id string) string {
	id = strings.ReplaceAll(id, "/", "_")
	return strings.ReplaceAll(id, ".", "_")
}

// PaperStore stores paper records in the papers table.
type PaperStore struct {
	db *sql.DB

	// sample reports whether this read should refresh the row timestamp.
	// Overridable in tests.
	sample func() bool
}

func NewPaperStore(db *sql.DB) *PaperStore {
	return &PaperStore{
		db:     db,
		sample: func() bool { return rand.Float64() < refreshRate },
	}
}

// Get loads a paper record by its sanitized key. A sampled fraction of
// successful reads refreshes the row timestamp so active papers survive
// eviction sweeps.
func (s *PaperStore) Get(id string) (*paper.Record, error) {
	const op = "docstore.PaperStore.Get"
	key := SanitizeKey(id)

	var (
		rec  paper.Record
		enc  paper.Encoded
		tree, bibliography, figures sql.NullString
	)
	err := s.db.QueryRow(
		`SELECT id, title, date, authors, abstract, toc, can_read_citation, tree, bibliography, figures
		 FROM papers WHERE id = ?`, key,
	).Scan(&rec.ID, &rec.Title, &rec.Date, &rec.Authors, &rec.Abstract,
		&rec.TableOfContents, &rec.CanReadCitation, &tree, &bibliography, &figures)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, op, "paper %s not in store", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query paper %s: %w", id, err)
	}

	enc.Title = rec.Title
	enc.Tree = json.RawMessage(tree.String)
	if bibliography.Valid {
		enc.Bibliography = json.RawMessage(bibliography.String)
	}
	if figures.Valid && figures.String != "" {
		enc.Figures = json.RawMessage(figures.String)
	}
	doc, err := paper.Decode(&enc)
	if err != nil {
		return nil, fmt.Errorf("decode paper %s: %w", id, err)
	}
	rec.ID = id
	rec.Doc = doc

	if s.sample() {
		if _, err := s.db.Exec(`UPDATE papers SET timestamp = CURRENT_TIMESTAMP WHERE id = ?`, key); err != nil {
			log.Printf("docstore: refresh timestamp for %s: %v", id, err)
		}
	}
	return &rec, nil
}

// Put upserts a paper record, stamping the row with the current time.
func (s *PaperStore) Put(rec *paper.Record) error {
	if rec.Doc == nil {
		return fmt.Errorf("put paper %s: record has no document", rec.ID)
	}
	enc, err := rec.Doc.Encode()
	if err != nil {
		return fmt.Errorf("encode paper %s: %w", rec.ID, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO papers (id, title, date, authors, abstract, toc, can_read_citation, tree, bibliography, figures, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			date = excluded.date,
			authors = excluded.authors,
			abstract = excluded.abstract,
			toc = excluded.toc,
			can_read_citation = excluded.can_read_citation,
			tree = excluded.tree,
			bibliography = excluded.bibliography,
			figures = excluded.figures,
			timestamp = CURRENT_TIMESTAMP`,
		SanitizeKey(rec.ID), rec.Title, rec.Date, rec.Authors, rec.Abstract,
		rec.TableOfContents, rec.CanReadCitation,
		string(enc.Tree), string(enc.Bibliography), string(enc.Figures))
	if err != nil {
		return fmt.Errorf("upsert paper %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateFigures rewrites only the figures column, leaving the tree and the
// row timestamp untouched. Used after figure URLs are resolved.
func (s *PaperStore) UpdateFigures(id string, figures map[string]*paper.FigureRecord) error {
	data, err := json.Marshal(figures)
	if err != nil {
		return fmt.Errorf("marshal figures for %s: %w", id, err)
	}
	res, err := s.db.Exec(`UPDATE papers SET figures = ? WHERE id = ?`, string(data), SanitizeKey(id))
	if err != nil {
		return fmt.Errorf("update figures for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.NotFound, "docstore.PaperStore.UpdateFigures", "paper %s not in store", id)
	}
	return nil
}

// Count returns the number of stored papers.
func (s *PaperStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count papers: %w", err)
	}
	return n, nil
}

// DeleteOldest removes the n papers with the oldest timestamps and returns
// their keys so callers can cascade deletion into the other tiers.
func (s *PaperStore) DeleteOldest(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.Query(`SELECT id FROM papers ORDER BY timestamp ASC, id ASC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("select oldest papers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan paper id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate oldest papers: %w", err)
	}

	for _, id := range ids {
		if _, err := s.db.Exec(`DELETE FROM papers WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete paper %s: %w", id, err)
		}
	}
	return ids, nil
}
