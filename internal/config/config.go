// Package config manages the JSON configuration file. API keys are
// encrypted at rest with AES-GCM; every other field is plain JSON so the
// file stays hand-editable.
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const encryptedPrefix = "enc:"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// StorageConfig holds the local storage locations.
type StorageConfig struct {
	DBPath      string `json:"db_path"`
	BlobDir     string `json:"blob_dir"`
	BlobBaseURL string `json:"blob_base_url"`
	WorkDir     string `json:"work_dir"`
}

// CacheConfig holds the tier capacities. MemoryPapers and MemoryIndexes
// bound the in-process tier; StoreLimit bounds the persistent tier, which
// is swept down by EvictBatch papers at a time.
type CacheConfig struct {
	MemoryPapers  int `json:"memory_papers"`
	MemoryIndexes int `json:"memory_indexes"`
	StoreLimit    int `json:"store_limit"`
	EvictBatch    int `json:"evict_batch"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Endpoint  string `json:"endpoint"`
	APIKey    string `json:"api_key"`
	ModelName string `json:"model_name"`
}

// ChunkConfig holds the text chunking parameters.
type ChunkConfig struct {
	Size    int `json:"size"`
	Overlap int `json:"overlap"`
	MinLen  int `json:"min_len"`
}

// VectorConfig holds the semantic index parameters.
type VectorConfig struct {
	CompressDim int `json:"compress_dim"`
	TopK        int `json:"top_k"`
}

// ArxivConfig holds the upstream arXiv endpoints.
type ArxivConfig struct {
	APIURL    string `json:"api_url"`
	EprintURL string `json:"eprint_url"`
	SearchURL string `json:"search_url"`
}

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	Cache     CacheConfig     `json:"cache"`
	Embedding EmbeddingConfig `json:"embedding"`
	Chunk     ChunkConfig     `json:"chunk"`
	Vector    VectorConfig    `json:"vector"`
	Arxiv     ArxivConfig     `json:"arxiv"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{
			DBPath:  "./data/xplorer.db",
			BlobDir: "./data/blobs",
			WorkDir: "./data/work",
		},
		Cache: CacheConfig{
			MemoryPapers:  15,
			MemoryIndexes: 2,
			StoreLimit:    10000,
			EvictBatch:    100,
		},
		Embedding: EmbeddingConfig{
			Endpoint:  "https://api.openai.com/v1",
			ModelName: "text-embedding-3-small",
		},
		Chunk:  ChunkConfig{Size: 250, Overlap: 15, MinLen: 50},
		Vector: VectorConfig{CompressDim: 384, TopK: 5},
		Arxiv: ArxivConfig{
			APIURL:    "http://export.arxiv.org/api/query",
			EprintURL: "https://arxiv.org/e-print",
			SearchURL: "https://arxiv-xplorer.com/api/search",
		},
	}
}

// ConfigManager loads, saves, and updates the configuration file.
type ConfigManager struct {
	path string
	key  []byte // nil disables encryption at rest

	mu     sync.RWMutex
	config *Config
}

// NewConfigManager creates a manager for the given path. The encryption key
// is read from XPLORER_SECRET_KEY; when unset, API keys are stored in
// plaintext.
func NewConfigManager(path string) (*ConfigManager, error) {
	if key := os.Getenv("XPLORER_SECRET_KEY"); key != "" {
		return NewConfigManagerWithKey(path, []byte(key))
	}
	return &ConfigManager{path: path}, nil
}

// NewConfigManagerWithKey creates a manager with an explicit 32-byte
// AES-256 key.
func NewConfigManagerWithKey(path string, key []byte) (*ConfigManager, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return &ConfigManager{path: path, key: key}, nil
}

// Load reads the configuration file, creating it with defaults when it does
// not exist. Encrypted API keys are decrypted into memory.
func (cm *ConfigManager) Load() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := os.ReadFile(cm.path)
	if os.IsNotExist(err) {
		cm.config = defaultConfig()
		return cm.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg := defaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Embedding.APIKey, err = cm.decryptIfNeeded(cfg.Embedding.APIKey); err != nil {
		return fmt.Errorf("failed to decrypt embedding API key: %w", err)
	}

	cm.config = cfg
	return nil
}

// Save writes the configuration file with API keys encrypted.
func (cm *ConfigManager) Save() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.saveLocked()
}

func (cm *ConfigManager) saveLocked() error {
	onDisk := *cm.config
	onDisk.Embedding.APIKey = cm.encryptIfNeeded(cm.config.Embedding.APIKey)

	data, err := json.MarshalIndent(&onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cm.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(cm.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if cm.config == nil {
		return nil
	}
	cfg := *cm.config
	return &cfg
}

// Update applies dotted-key updates and persists the result. Unknown keys
// are rejected.
func (cm *ConfigManager) Update(updates map[string]interface{}) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for key, value := range updates {
		if err := cm.applyUpdate(key, value); err != nil {
			return err
		}
	}
	return cm.saveLocked()
}

func (cm *ConfigManager) applyUpdate(key string, value interface{}) error {
	cfg := cm.config
	switch key {
	case "server.addr":
		return setString(&cfg.Server.Addr, key, value)
	case "embedding.endpoint":
		return setString(&cfg.Embedding.Endpoint, key, value)
	case "embedding.api_key":
		return setString(&cfg.Embedding.APIKey, key, value)
	case "embedding.model_name":
		return setString(&cfg.Embedding.ModelName, key, value)
	case "chunk.size":
		return setInt(&cfg.Chunk.Size, key, value)
	case "chunk.overlap":
		return setInt(&cfg.Chunk.Overlap, key, value)
	case "chunk.min_len":
		return setInt(&cfg.Chunk.MinLen, key, value)
	case "vector.compress_dim":
		return setInt(&cfg.Vector.CompressDim, key, value)
	case "vector.top_k":
		return setInt(&cfg.Vector.TopK, key, value)
	case "cache.memory_papers":
		return setInt(&cfg.Cache.MemoryPapers, key, value)
	case "cache.memory_indexes":
		return setInt(&cfg.Cache.MemoryIndexes, key, value)
	case "cache.store_limit":
		return setInt(&cfg.Cache.StoreLimit, key, value)
	case "cache.evict_batch":
		return setInt(&cfg.Cache.EvictBatch, key, value)
	case "arxiv.api_url":
		return setString(&cfg.Arxiv.APIURL, key, value)
	case "arxiv.eprint_url":
		return setString(&cfg.Arxiv.EprintURL, key, value)
	case "arxiv.search_url":
		return setString(&cfg.Arxiv.SearchURL, key, value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

func setString(dst *string, key string, value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("config key %s expects a string", key)
	}
	*dst = s
	return nil
}

func setInt(dst *int, key string, value interface{}) error {
	switch v := value.(type) {
	case int:
		*dst = v
	case float64:
		*dst = int(v)
	default:
		return fmt.Errorf("config key %s expects a number", key)
	}
	return nil
}

// encryptIfNeeded encrypts a secret for storage. Empty values and values
// already carrying the prefix pass through.
func (cm *ConfigManager) encryptIfNeeded(plaintext string) string {
	if plaintext == "" || cm.key == nil || strings.HasPrefix(plaintext, encryptedPrefix) {
		return plaintext
	}
	block, err := aes.NewCipher(cm.key)
	if err != nil {
		return plaintext
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return plaintext
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return plaintext
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed)
}

// decryptIfNeeded reverses encryptIfNeeded. Values without the prefix are
// assumed to be plaintext from a hand-edited file.
func (cm *ConfigManager) decryptIfNeeded(value string) (string, error) {
	if value == "" || !strings.HasPrefix(value, encryptedPrefix) {
		return value, nil
	}
	if cm.key == nil {
		return "", fmt.Errorf("encrypted value present but no key configured")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid encrypted value: %w", err)
	}
	block, err := aes.NewCipher(cm.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("encrypted value too short")
	}
	plaintext, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plaintext), nil
}
