package lodestone

import (
	"os"
	"path/filepath"
	"time"

	"github.com/quillforge/lodestone/index"
)

// Config holds all configuration for a lodestone engine.
type Config struct {
	// Vault is the root directory of the indexed corpus. Required unless a
	// custom source is injected with WithSource.
	Vault string `toml:"vault" json:"vault"`

	// DBPath is the full path to the SQLite database file. If empty the
	// path is derived from StorageDir and DBName.
	DBPath string `toml:"db_path" json:"db_path"`

	// DBName names the database file when DBPath is empty. Defaults to
	// "lodestone"; the file becomes <DBName>.db inside the storage
	// directory.
	DBName string `toml:"db_name" json:"db_name"`

	// StorageDir controls where the database lives when DBPath is not
	// explicitly set. "vault" (default) uses <Vault>/.lodestone/, "home"
	// uses ~/.lodestone/, "local" uses the working directory.
	StorageDir string `toml:"storage_dir" json:"storage_dir"`

	// EmbeddingDim is the vector width of the embedding table. Must match
	// the embedding model's output dimension.
	EmbeddingDim int `toml:"embedding_dim" json:"embedding_dim"`

	// AutoIndex makes the long-running surfaces (serve, watch) reconcile
	// the index on startup and follow live changes.
	AutoIndex bool `toml:"auto_index" json:"auto_index"`

	// DebounceMs is the quiet period, in milliseconds, before buffered
	// change events are flushed to the index.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms"`

	Indexing IndexingConfig `toml:"indexing" json:"indexing"`
	Search   SearchConfig   `toml:"search" json:"search"`

	// Embedding and Rerank configure the model providers. Provider "none"
	// (or empty) runs without that model: indexing then skips vectors,
	// search keeps the boosted ordering.
	Embedding ProviderConfig `toml:"embedding" json:"embedding"`
	Rerank    ProviderConfig `toml:"rerank" json:"rerank"`
}

// IndexingConfig holds the chunking and bulk-indexing knobs.
type IndexingConfig struct {
	MaxChunkSize    int `toml:"max_chunk_size" json:"max_chunk_size"`       // runes per chunk
	ChunkOverlap    int `toml:"chunk_overlap" json:"chunk_overlap"`         // runes shared between neighbours
	MinDocumentSize int `toml:"min_document_size" json:"min_document_size"` // documents at or below stay one chunk
	Workers         int `toml:"workers" json:"workers"`                     // bulk indexing pool size, default NumCPU/2
}

// SearchConfig holds the ranking constants. The boost factors are tuned
// heuristics; they are configuration rather than code so hosts can retune
// without a release.
type SearchConfig struct {
	TopK          int     `toml:"top_k" json:"top_k"`
	RRFK          float64 `toml:"rrf_k" json:"rrf_k"`
	ContentWeight float64 `toml:"content_weight" json:"content_weight"`
	MetaWeight    float64 `toml:"meta_weight" json:"meta_weight"`
	FreqBoost     float64 `toml:"freq_boost" json:"freq_boost"`
	RecencyBoost  float64 `toml:"recency_boost" json:"recency_boost"`
	RecencyDecay  float64 `toml:"recency_decay" json:"recency_decay"`
	GraphBoost    float64 `toml:"graph_boost" json:"graph_boost"`
	GraphHops     int     `toml:"graph_hops" json:"graph_hops"`
	RerankWeight  float64 `toml:"rerank_weight" json:"rerank_weight"`
	CacheSize     int     `toml:"cache_size" json:"cache_size"`

	// CoverageFulltext and CoverageMeta weight the keyword-coverage boost
	// inside the fulltext and meta sub-searches.
	CoverageFulltext float64 `toml:"coverage_fulltext" json:"coverage_fulltext"`
	CoverageMeta     float64 `toml:"coverage_meta" json:"coverage_meta"`
}

// ProviderConfig configures a single model endpoint.
type ProviderConfig struct {
	Provider string  `toml:"provider" json:"provider"` // none, local, ollama, openai, custom
	Model    string  `toml:"model" json:"model"`
	BaseURL  string  `toml:"base_url" json:"base_url"`
	APIKey   string  `toml:"api_key" json:"api_key"`
	RPS      float64 `toml:"rps" json:"rps"` // request rate cap, 0 = unlimited
}

// DefaultConfig returns a Config with sensible defaults for a local vault.
// The database lives in <Vault>/.lodestone/lodestone.db; the embedding
// provider is off until configured, with the Ollama fields pre-filled so
// switching it on is a one-line change.
func DefaultConfig() Config {
	return Config{
		DBName:       "lodestone",
		StorageDir:   "vault",
		EmbeddingDim: 768,
		AutoIndex:    true,
		DebounceMs:   800,
		Indexing: IndexingConfig{
			MaxChunkSize:    1000,
			ChunkOverlap:    200,
			MinDocumentSize: 500,
		},
		Search: SearchConfig{
			TopK:             20,
			RRFK:             60,
			ContentWeight:    1.0,
			MetaWeight:       1.0,
			FreqBoost:        0.15,
			RecencyBoost:     0.3,
			RecencyDecay:     0.01,
			GraphBoost:       0.2,
			GraphHops:        2,
			RerankWeight:     0.3,
			CacheSize:        128,
			CoverageFulltext: 0.5,
			CoverageMeta:     0.8,
		},
		Embedding: ProviderConfig{
			Provider: "none",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "lodestone"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	case "home":
		return homeDBPath(name)
	default: // "vault" or empty
		if c.Vault != "" {
			return filepath.Join(c.Vault, ".lodestone", name+".db")
		}
		return homeDBPath(name)
	}
}

func homeDBPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name + ".db" // fallback to cwd
	}
	return filepath.Join(home, ".lodestone", name+".db")
}

// debounce converts DebounceMs, falling back to the listener default.
func (c *Config) debounce() time.Duration {
	if c.DebounceMs <= 0 {
		return index.DefaultDebounce
	}
	return time.Duration(c.DebounceMs) * time.Millisecond
}
