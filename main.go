package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"xplorer/internal/apperr"
	"xplorer/internal/blob"
	"xplorer/internal/cache"
	"xplorer/internal/config"
	"xplorer/internal/db"
	"xplorer/internal/docstore"
	"xplorer/internal/embedding"
	"xplorer/internal/ingest"
	"xplorer/internal/middleware"
)

// requestsPerMinute is the per-client budget. Ingestion-heavy endpoints are
// slow, so the ceiling is generous for readers and still stops loops.
const requestsPerMinute = 120

func main() {
	// Ensure data directory exists
	if err := os.MkdirAll("./data", 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// 1. Initialize ConfigManager and load config
	configPath := "./data/config.json"
	cm, err := config.NewConfigManager(configPath)
	if err != nil {
		log.Fatalf("Failed to create config manager: %v", err)
	}
	if err := cm.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cm.Get()

	// 2. Initialize database
	database, err := db.InitDB(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 3. Create service instances
	blobs, err := blob.New(cfg.Storage.BlobDir, cfg.Storage.BlobBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}
	papers := docstore.NewPaperStore(database)
	vectors := docstore.NewVectorStore(database)
	es := embedding.NewAPIService(cfg.Embedding.Endpoint, cfg.Embedding.APIKey, cfg.Embedding.ModelName)
	client := ingest.NewClient(cfg.Arxiv.APIURL, cfg.Arxiv.EprintURL)
	ingester := ingest.NewIngestor(client, blobs, cfg.Storage.WorkDir)
	pc := cache.New(papers, vectors, blobs, ingester, es, cache.Options{
		MemoryPapers:  cfg.Cache.MemoryPapers,
		MemoryIndexes: cfg.Cache.MemoryIndexes,
		StoreLimit:    cfg.Cache.StoreLimit,
		EvictBatch:    cfg.Cache.EvictBatch,
		ChunkSize:     cfg.Chunk.Size,
		ChunkOverlap:  cfg.Chunk.Overlap,
		ChunkMinLen:   cfg.Chunk.MinLen,
		CompressDim:   cfg.Vector.CompressDim,
	})

	// 4. Create App
	app := NewApp(pc, cm)

	// 5. Register HTTP API handlers
	registerAPIHandlers(app)

	// 6. Start HTTP server
	addr := cfg.Server.Addr
	fmt.Printf("arXiv explorer starting on %s\n", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func registerAPIHandlers(app *App) {
	limiter := middleware.NewRateLimiter(requestsPerMinute, time.Minute)
	wrap := middleware.Chain(middleware.RequestID(), middleware.CORS(), limiter.Limit())

	// Paper operations
	http.HandleFunc("/api/paper/metadata", wrap(handleMetadata(app)))
	http.HandleFunc("/api/paper/section", wrap(handleSection(app)))
	http.HandleFunc("/api/paper/citation", wrap(handleCitation(app)))
	http.HandleFunc("/api/paper/chunk-search", wrap(handleChunkSearch(app)))
	http.HandleFunc("/api/paper/figures", wrap(handleFigures(app)))

	// Discovery search proxy
	http.HandleFunc("/api/search", wrap(handleSearch(app)))

	// Maintenance
	http.HandleFunc("/api/maintenance/sweep", wrap(handleSweep(app)))

	// Config
	http.HandleFunc("/api/config", wrap(handleConfig(app)))
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.ParseFailure:
		status = http.StatusUnprocessableEntity
	case apperr.ProviderFailure:
		status = http.StatusBadGateway
	case apperr.CapabilityUnavailable:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": string(kind)})
}

func writeClientError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Paper handlers ---

func handleMetadata(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeClientError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			writeClientError(w, http.StatusBadRequest, "missing id parameter")
			return
		}
		showAbstract := r.URL.Query().Get("abstract") != "false"
		meta, err := app.Metadata(r.Context(), id, showAbstract)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, meta)
	}
}

func handleSection(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeClientError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id := r.URL.Query().Get("id")
		path := r.URL.Query().Get("path")
		if id == "" || path == "" {
			writeClientError(w, http.StatusBadRequest, "missing id or path parameter")
			return
		}
		section, err := app.ReadSection(r.Context(), id, path)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, section)
	}
}

func handleCitation(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeClientError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id := r.URL.Query().Get("id")
		key := r.URL.Query().Get("key")
		if id == "" || key == "" {
			writeClientError(w, http.StatusBadRequest, "missing id or key parameter")
			return
		}
		citation, err := app.Citation(r.Context(), id, key)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key, "citation": citation})
	}
}

func handleChunkSearch(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeClientError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id := r.URL.Query().Get("id")
		query := r.URL.Query().Get("query")
		if id == "" || query == "" {
			writeClientError(w, http.StatusBadRequest, "missing id or query parameter")
			return
		}
		count := 0
		if c := r.URL.Query().Get("count"); c != "" {
			n, err := strconv.Atoi(c)
			if err != nil || n < 1 {
				writeClientError(w, http.StatusBadRequest, "invalid count parameter")
				return
			}
			count = n
		}
		results, err := app.ChunkSearch(r.Context(), id, query, count)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
	}
}

func handleFigures(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeClientError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			writeClientError(w, http.StatusBadRequest, "missing id parameter")
			return
		}
		var labels []string
		if l := r.URL.Query().Get("labels"); l != "" {
			labels = strings.Split(l, ",")
		}
		figures, err := app.Figures(r.Context(), id, labels)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"figures": figures})
	}
}

// --- Search proxy handler ---

func handleSearch(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeClientError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		query := r.URL.Query().Get("query")
		if query == "" {
			writeClientError(w, http.StatusBadRequest, "missing query parameter")
			return
		}
		body, err := app.ProxySearch(r.Context(), query, r.URL.Query().Get("page"))
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

// --- Maintenance handler ---

func handleSweep(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeClientError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		evicted, err := app.Sweep()
		if err != nil {
			writeError(w, err)
			return
		}
		if evicted == nil {
			evicted = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"evicted": evicted})
	}
}

// --- Config handler ---

func handleConfig(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg := app.configManager.Get()
			// Never expose the API key.
			cfg.Embedding.APIKey = ""
			writeJSON(w, http.StatusOK, cfg)
		case http.MethodPut:
			var updates map[string]interface{}
			if err := readJSONBody(r, &updates); err != nil {
				writeClientError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if err := app.configManager.Update(updates); err != nil {
				writeClientError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		default:
			writeClientError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}
