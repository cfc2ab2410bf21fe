// Package cache ties the storage tiers together: an in-process LRU over the
// SQLite paper store, a separate tier for chunk embedding indexes, and the
// blob store for figure assets. A miss in every tier triggers ingestion and
// writes the result through all tiers.
package cache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"xplorer/internal/apperr"
	"xplorer/internal/blob"
	"xplorer/internal/docstore"
	"xplorer/internal/embedding"
	"xplorer/internal/images"
	"xplorer/internal/ingest"
	"xplorer/internal/paper"
	"xplorer/internal/vector"
)

// Ingester produces a parsed record for an identifier. Satisfied by
// *ingest.Ingestor.
type Ingester interface {
	Ingest(ctx context.Context, id string) (*paper.Record, error)
}

// Options bounds the tiers and parameterizes index building.
type Options struct {
	MemoryPapers  int
	MemoryIndexes int
	StoreLimit    int
	EvictBatch    int

	ChunkSize    int
	ChunkOverlap int
	ChunkMinLen  int
	CompressDim  int
}

// Cache is the paper cache. Two records for the same id ingested
// concurrently both complete and the later write wins; the tiers stay
// consistent because every write is a full record.
type Cache struct {
	store    *docstore.PaperStore
	vectors  *docstore.VectorStore
	blobs    *blob.Store
	ingester Ingester
	embedder embedding.Service
	opts     Options

	mu      sync.Mutex
	papers  *lru[*paper.Record]
	indexes *lru[*vector.Index]
}

func New(store *docstore.PaperStore, vectors *docstore.VectorStore, blobs *blob.Store,
	ingester Ingester, embedder embedding.Service, opts Options) *Cache {
	return &Cache{
		store:    store,
		vectors:  vectors,
		blobs:    blobs,
		ingester: ingester,
		embedder: embedder,
		opts:     opts,
		papers:   newLRU[*paper.Record](opts.MemoryPapers),
		indexes:  newLRU[*vector.Index](opts.MemoryIndexes),
	}
}

// Get returns the record for an identifier, checking memory, then the
// persistent store, then running ingestion and writing the result through.
func (c *Cache) Get(ctx context.Context, rawID string) (*paper.Record, error) {
	const op = "cache.Cache.Get"

	id := ingest.CleanID(rawID)
	if id == "" {
		return nil, apperr.New(apperr.ParseFailure, op, "%q is not an arXiv identifier", rawID)
	}
	sid := docstore.SanitizeKey(id)

	c.mu.Lock()
	if rec, ok := c.papers.Get(sid); ok {
		c.mu.Unlock()
		return rec, nil
	}
	c.mu.Unlock()

	rec, err := c.store.Get(id)
	if err == nil {
		c.mu.Lock()
		c.papers.Add(sid, rec)
		c.mu.Unlock()
		return rec, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}

	rec, err = c.ingester.Ingest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.Put(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Put writes a record into the memory and persistent tiers. A built vector
// index on the record is persisted into its own tier.
func (c *Cache) Put(rec *paper.Record) error {
	sid := docstore.SanitizeKey(rec.ID)

	c.mu.Lock()
	c.papers.Add(sid, rec)
	c.mu.Unlock()

	if err := c.store.Put(rec); err != nil {
		return err
	}
	if rec.Doc != nil && rec.Doc.Index != nil {
		if err := c.putIndex(sid, rec.Doc.Index); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) putIndex(sid string, idx *vector.Index) error {
	payload, err := idx.Marshal()
	if err != nil {
		return err
	}
	if err := c.vectors.Put(sid, string(payload)); err != nil {
		return err
	}
	c.mu.Lock()
	c.indexes.Add(sid, idx)
	c.mu.Unlock()
	return nil
}

// Index returns the chunk embedding index for a paper, building and
// persisting it on first use.
func (c *Cache) Index(ctx context.Context, rawID string) (*vector.Index, error) {
	rec, err := c.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}
	sid := docstore.SanitizeKey(rec.ID)

	c.mu.Lock()
	if idx, ok := c.indexes.Get(sid); ok {
		c.mu.Unlock()
		rec.Doc.Index = idx
		return idx, nil
	}
	c.mu.Unlock()

	payload, err := c.vectors.Get(sid)
	if err == nil {
		idx, err := vector.Unmarshal([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode vector index %s: %w", rec.ID, err)
		}
		c.mu.Lock()
		c.indexes.Add(sid, idx)
		c.mu.Unlock()
		rec.Doc.Index = idx
		return idx, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}

	chunks := rec.Doc.ChunkTreeSized(c.opts.ChunkSize, c.opts.ChunkOverlap, c.opts.ChunkMinLen)
	idx, err := vector.Build(c.embedder, chunks, c.opts.CompressDim)
	if err != nil {
		return nil, err
	}
	if err := c.putIndex(sid, idx); err != nil {
		return nil, err
	}
	rec.Doc.Index = idx
	return idx, nil
}

// Search runs a semantic query over a paper's chunks.
func (c *Cache) Search(ctx context.Context, rawID, query string, count int) ([]string, error) {
	idx, err := c.Index(ctx, rawID)
	if err != nil {
		return nil, err
	}
	return idx.Search(c.embedder, query, count)
}

// Figures returns the requested figure records with their image URLs
// resolved, rendering and uploading images on first request. An empty label
// list means every figure. Unknown labels are skipped.
func (c *Cache) Figures(ctx context.Context, rawID string, labels []string) (map[string]*paper.FigureRecord, error) {
	rec, err := c.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}
	sid := docstore.SanitizeKey(rec.ID)

	if len(labels) == 0 {
		for label := range rec.Doc.Figures {
			labels = append(labels, label)
		}
	}

	out := make(map[string]*paper.FigureRecord)
	var archive []byte
	changed := false
	for _, label := range labels {
		fig, ok := rec.Doc.Figures[label]
		if !ok {
			continue
		}
		if !fig.Resolved() && len(fig.Paths) > 0 {
			if archive == nil {
				archive, err = c.blobs.Download(blob.ArchiveKey(sid, "zip"))
				if err != nil {
					return nil, err
				}
			}
			if err := c.resolveFigure(sid, fig, archive); err != nil {
				return nil, err
			}
			// Figures whose every graphic failed stay unresolved; serve the
			// rest rather than failing the whole request.
			if fig.Resolved() {
				changed = true
			}
		}
		out[label] = fig
	}

	if changed {
		if err := c.store.UpdateFigures(rec.ID, rec.Doc.Figures); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// resolveFigure renders each source file of one figure from the archive and
// uploads it, filling the record's URL list. A graphic that is missing from
// the archive or not decodable (vector formats end up in archives too) is
// logged and skipped; only storage failures surface as errors.
func (c *Cache) resolveFigure(sid string, fig *paper.FigureRecord, archive []byte) error {
	urls := make([]string, 0, len(fig.Paths))
	for i, path := range fig.Paths {
		data, err := images.FromZip(archive, path)
		if err != nil {
			log.Printf("cache: figure %s graphic %s: %v", fig.Label, path, err)
			continue
		}
		var hint paper.SizeHint
		if i < len(fig.Sizes) {
			hint = fig.Sizes[i]
		}
		rendered, err := images.Render(data, hint)
		if err != nil {
			log.Printf("cache: figure %s graphic %s: %v", fig.Label, path, err)
			continue
		}
		name := fig.Label
		if len(fig.Paths) > 1 {
			name += "_" + strconv.Itoa(i+1)
		}
		key := blob.ImageKey(sid, name)
		if err := c.blobs.Upload(key, rendered); err != nil {
			return err
		}
		urls = append(urls, c.blobs.PublicURL(key))
	}
	fig.URLs = urls
	return nil
}

// Sweep enforces the persistent-tier limit, deleting the oldest papers and
// cascading into the vector and blob tiers. Returns the evicted keys. Only
// the entries beyond capacity are evicted, at most EvictBatch per sweep.
func (c *Cache) Sweep() ([]string, error) {
	count, err := c.store.Count()
	if err != nil {
		return nil, err
	}
	over := count - c.opts.StoreLimit
	if over <= 0 {
		return nil, nil
	}
	if c.opts.EvictBatch > 0 && over > c.opts.EvictBatch {
		over = c.opts.EvictBatch
	}

	ids, err := c.store.DeleteOldest(over)
	if err != nil {
		return nil, err
	}
	for _, sid := range ids {
		c.mu.Lock()
		c.papers.Remove(sid)
		c.indexes.Remove(sid)
		c.mu.Unlock()

		if err := c.vectors.Delete(sid); err != nil {
			log.Printf("cache: sweep %s: %v", sid, err)
		}
		for _, key := range []string{blob.ArchiveKey(sid, "zip"), blob.ArchiveKey(sid, "pdf")} {
			if err := c.blobs.Delete(key); err != nil {
				log.Printf("cache: sweep %s: %v", sid, err)
			}
		}
		if err := c.blobs.DeletePrefix(blob.ImagePrefix(sid)); err != nil {
			log.Printf("cache: sweep %s: %v", sid, err)
		}
	}
	return ids, nil
}
