package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testKey() []byte {
	return []byte("01234567890123456789012345678901") // 32 bytes
}

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func newTestManager(t *testing.T) (*ConfigManager, string) {
	t.Helper()
	path := tempConfigPath(t)
	cm, err := NewConfigManagerWithKey(path, testKey())
	if err != nil {
		t.Fatalf("NewConfigManagerWithKey: %v", err)
	}
	return cm, path
}

func TestNewConfigManagerWithKey_InvalidKeyLength(t *testing.T) {
	_, err := NewConfigManagerWithKey("test.json", []byte("short"))
	if err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestLoad_CreatesDefaultOnMissing(t *testing.T) {
	cm, path := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// File should be created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	cfg := cm.Get()
	if cfg == nil {
		t.Fatal("Get returned nil")
	}

	// Verify defaults
	if cfg.Chunk.Size != 250 {
		t.Errorf("Chunk.Size = %d, want 250", cfg.Chunk.Size)
	}
	if cfg.Chunk.Overlap != 15 {
		t.Errorf("Chunk.Overlap = %d, want 15", cfg.Chunk.Overlap)
	}
	if cfg.Chunk.MinLen != 50 {
		t.Errorf("Chunk.MinLen = %d, want 50", cfg.Chunk.MinLen)
	}
	if cfg.Vector.CompressDim != 384 {
		t.Errorf("Vector.CompressDim = %d, want 384", cfg.Vector.CompressDim)
	}
	if cfg.Vector.TopK != 5 {
		t.Errorf("Vector.TopK = %d, want 5", cfg.Vector.TopK)
	}
	if cfg.Cache.MemoryPapers != 15 {
		t.Errorf("Cache.MemoryPapers = %d, want 15", cfg.Cache.MemoryPapers)
	}
	if cfg.Cache.StoreLimit != 10000 {
		t.Errorf("Cache.StoreLimit = %d, want 10000", cfg.Cache.StoreLimit)
	}
	if cfg.Storage.DBPath != "./data/xplorer.db" {
		t.Errorf("Storage.DBPath = %q, want ./data/xplorer.db", cfg.Storage.DBPath)
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	cm, path := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cm.config.Embedding.APIKey = "sk-test-secret-key-12345"
	cm.config.Embedding.Endpoint = "https://api.example.com/v1"
	cm.config.Arxiv.SearchURL = "https://search.example.com/api"

	if err := cm.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Load into a new manager
	cm2, err := NewConfigManagerWithKey(path, testKey())
	if err != nil {
		t.Fatalf("NewConfigManagerWithKey: %v", err)
	}
	if err := cm2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := cm2.Get()
	if cfg.Embedding.APIKey != "sk-test-secret-key-12345" {
		t.Errorf("Embedding.APIKey = %q, want sk-test-secret-key-12345", cfg.Embedding.APIKey)
	}
	if cfg.Embedding.Endpoint != "https://api.example.com/v1" {
		t.Errorf("Embedding.Endpoint = %q", cfg.Embedding.Endpoint)
	}
	if cfg.Arxiv.SearchURL != "https://search.example.com/api" {
		t.Errorf("Arxiv.SearchURL = %q", cfg.Arxiv.SearchURL)
	}
}

func TestSave_APIKeyEncryptedOnDisk(t *testing.T) {
	cm, path := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cm.config.Embedding.APIKey = "my-secret-emb-key"
	if err := cm.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Read raw file and verify the plaintext key is NOT present
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	raw := string(data)

	if strings.Contains(raw, "my-secret-emb-key") {
		t.Error("embedding API key found in plaintext on disk")
	}
	if !strings.Contains(raw, encryptedPrefix) {
		t.Error("encrypted prefix not found in file")
	}
}

func TestUpdate_AppliesAndPersists(t *testing.T) {
	cm, path := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	updates := map[string]interface{}{
		"embedding.endpoint":   "https://new-api.example.com",
		"embedding.api_key":    "new-key",
		"embedding.model_name": "text-embedding-3-large",
		"chunk.size":           300,
		"vector.top_k":         10,
		"cache.store_limit":    500,
	}
	if err := cm.Update(updates); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Verify in-memory
	cfg := cm.Get()
	if cfg.Embedding.Endpoint != "https://new-api.example.com" {
		t.Errorf("Embedding.Endpoint = %q", cfg.Embedding.Endpoint)
	}
	if cfg.Embedding.ModelName != "text-embedding-3-large" {
		t.Errorf("Embedding.ModelName = %q", cfg.Embedding.ModelName)
	}
	if cfg.Chunk.Size != 300 {
		t.Errorf("Chunk.Size = %d", cfg.Chunk.Size)
	}
	if cfg.Vector.TopK != 10 {
		t.Errorf("Vector.TopK = %d", cfg.Vector.TopK)
	}
	if cfg.Cache.StoreLimit != 500 {
		t.Errorf("Cache.StoreLimit = %d", cfg.Cache.StoreLimit)
	}

	// Verify persisted
	cm2, err := NewConfigManagerWithKey(path, testKey())
	if err != nil {
		t.Fatalf("NewConfigManagerWithKey: %v", err)
	}
	if err := cm2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg2 := cm2.Get()
	if cfg2.Embedding.Endpoint != "https://new-api.example.com" {
		t.Errorf("persisted Embedding.Endpoint = %q", cfg2.Embedding.Endpoint)
	}
	if cfg2.Embedding.APIKey != "new-key" {
		t.Errorf("persisted Embedding.APIKey = %q", cfg2.Embedding.APIKey)
	}
}

func TestUpdate_UnknownKey(t *testing.T) {
	cm, _ := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	err := cm.Update(map[string]interface{}{"unknown.key": "value"})
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	cm, _ := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg1 := cm.Get()
	cfg1.Embedding.Endpoint = "modified"

	cfg2 := cm.Get()
	if cfg2.Embedding.Endpoint == "modified" {
		t.Error("Get did not return a copy — mutation leaked")
	}
}

func TestLoad_PlaintextAPIKey(t *testing.T) {
	// Simulate a manually edited config with plaintext API key
	path := tempConfigPath(t)
	raw := map[string]interface{}{
		"embedding": map[string]interface{}{
			"api_key": "plaintext-key",
		},
	}
	data, _ := json.Marshal(raw)
	os.WriteFile(path, data, 0600)

	cm, err := NewConfigManagerWithKey(path, testKey())
	if err != nil {
		t.Fatalf("NewConfigManagerWithKey: %v", err)
	}
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := cm.Get()
	if cfg.Embedding.APIKey != "plaintext-key" {
		t.Errorf("APIKey = %q, want plaintext-key", cfg.Embedding.APIKey)
	}
}

func TestEncryptDecrypt_EmptyString(t *testing.T) {
	cm, _ := newTestManager(t)
	encrypted := cm.encryptIfNeeded("")
	if encrypted != "" {
		t.Errorf("encryptIfNeeded empty = %q, want empty", encrypted)
	}
	decrypted, err := cm.decryptIfNeeded("")
	if err != nil {
		t.Fatalf("decryptIfNeeded: %v", err)
	}
	if decrypted != "" {
		t.Errorf("decryptIfNeeded empty = %q, want empty", decrypted)
	}
}
