package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"xplorer/internal/apperr"
	"xplorer/internal/cache"
	"xplorer/internal/config"
	"xplorer/internal/paper"
)

// App wires the HTTP layer to the paper cache and the external discovery
// search service.
type App struct {
	cache         *cache.Cache
	configManager *config.ConfigManager
	searchClient  *http.Client
}

func NewApp(c *cache.Cache, cm *config.ConfigManager) *App {
	return &App{
		cache:         c,
		configManager: cm,
		searchClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Metadata returns the metadata view of a paper, ingesting it on first
// request.
func (a *App) Metadata(ctx context.Context, id string, showAbstract bool) (paper.Metadata, error) {
	rec, err := a.cache.Get(ctx, id)
	if err != nil {
		return paper.Metadata{}, err
	}
	return rec.Metadata(showAbstract), nil
}

// SectionResponse is the read-section payload.
type SectionResponse struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ReadSection returns one section addressed by a dotted 1-based path such
// as "2.1".
func (a *App) ReadSection(ctx context.Context, id, dottedPath string) (SectionResponse, error) {
	const op = "app.ReadSection"

	rec, err := a.cache.Get(ctx, id)
	if err != nil {
		return SectionResponse{}, err
	}

	path, err := parseSectionPath(dottedPath)
	if err != nil {
		return SectionResponse{}, apperr.Wrap(apperr.ParseFailure, op, err)
	}
	sec, err := rec.Doc.SectionAt(path...)
	if err != nil {
		return SectionResponse{}, apperr.Wrap(apperr.NotFound, op, err)
	}
	return SectionResponse{Title: sec.Title, Content: sec.Content}, nil
}

// parseSectionPath converts "2.1" into the 0-based index path {1, 0}.
func parseSectionPath(dotted string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(dotted), ".")
	path := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid section path %q", dotted)
		}
		path = append(path, n-1)
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("empty section path")
	}
	return path, nil
}

// Citation resolves a bibliography key. Papers parsed without a
// bibliography cannot serve citations.
func (a *App) Citation(ctx context.Context, id, key string) (string, error) {
	const op = "app.Citation"

	rec, err := a.cache.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !rec.CanReadCitation {
		return "", apperr.New(apperr.CapabilityUnavailable, op, "paper %s has no readable bibliography", rec.ID)
	}
	return rec.Doc.Citation(key), nil
}

// ChunkSearch runs a semantic query over a paper's chunk index.
func (a *App) ChunkSearch(ctx context.Context, id, query string, count int) ([]string, error) {
	if count <= 0 {
		count = a.configManager.Get().Vector.TopK
	}
	return a.cache.Search(ctx, id, query, count)
}

// Figures returns figure records with resolved image URLs.
func (a *App) Figures(ctx context.Context, id string, labels []string) (map[string]*paper.FigureRecord, error) {
	return a.cache.Figures(ctx, id, labels)
}

// Sweep enforces the persistent-tier capacity and reports evicted keys.
func (a *App) Sweep() ([]string, error) {
	return a.cache.Sweep()
}

// ProxySearch forwards a discovery query to the external search service
// and returns its raw JSON response.
func (a *App) ProxySearch(ctx context.Context, query, page string) ([]byte, error) {
	const op = "app.ProxySearch"

	searchURL := a.configManager.Get().Arxiv.SearchURL
	params := url.Values{"query": {query}}
	if page != "" {
		params.Set("page", page)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, err)
	}
	resp, err := a.searchClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderFailure, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderFailure, op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.ProviderFailure, op, "search service returned %d", resp.StatusCode)
	}
	return body, nil
}
