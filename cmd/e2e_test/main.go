// Command e2e_test exercises the whole engine against a throwaway vault:
// index, search, usage boost, and incremental reconciliation. It uses the
// deterministic local embedder, so it runs offline. Exits non-zero on the
// first failed check.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/quillforge/lodestone"
)

var notes = map[string]string{
	"recipes/espresso.md": `# Espresso Notes

Dialing in the grinder: 18g in, 36g out, about 28 seconds.
A finer grind slows the shot, a coarser one speeds it up.
See [[Brew Log]] for daily results.`,
	"recipes/bread.md": `# Sourdough Bread

Feed the starter the night before. Bulk ferment four hours
at room temperature, then shape and retard overnight.`,
	"journal/brew-log.md": `# Brew Log

Tuesday: the espresso ran fast, tightened the grind two steps.`,
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	tmpDir, err := os.MkdirTemp("", "lodestone-e2e-*")
	if err != nil {
		fail("temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	vault := filepath.Join(tmpDir, "vault")
	for path, content := range notes {
		full := filepath.Join(vault, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			fail("writing vault: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			fail("writing vault: %v", err)
		}
	}

	cfg := lodestone.DefaultConfig()
	cfg.Vault = vault
	cfg.DBPath = filepath.Join(tmpDir, "e2e.db")
	cfg.EmbeddingDim = 64
	cfg.Embedding.Provider = "local"

	engine, err := lodestone.New(cfg)
	if err != nil {
		fail("creating engine: %v", err)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Fprintln(os.Stderr, "=== INDEXING ===")
	summary, err := engine.IndexAll(ctx)
	if err != nil {
		fail("indexing: %v", err)
	}
	if summary.Indexed != len(notes) || summary.Failed != 0 {
		fail("indexed %d of %d, %d failed", summary.Indexed, len(notes), summary.Failed)
	}
	fmt.Fprintf(os.Stderr, "indexed %d documents in %s\n", summary.Indexed, summary.Elapsed.Round(time.Millisecond))

	status, err := engine.Status(ctx)
	if err != nil {
		fail("status: %v", err)
	}
	if !status.Ready || status.Documents != len(notes) {
		fail("status not ready: %+v", status)
	}
	if status.GraphEdges == 0 {
		fail("wikilink produced no graph edges")
	}

	fmt.Fprintln(os.Stderr, "\n=== SEARCHING ===")
	results, trace, err := engine.Search(ctx, "espresso grinder setting")
	if err != nil {
		fail("search: %v", err)
	}
	if len(results) == 0 {
		fail("no results")
	}
	if results[0].Path != "recipes/espresso.md" {
		fail("expected recipes/espresso.md first, got %s", results[0].Path)
	}
	if trace.FulltextHits == 0 || trace.VectorHits == 0 {
		fail("expected both content lanes to fire: %+v", trace)
	}

	// Opening a document should boost it on later searches.
	if err := engine.RecordOpen(ctx, "journal/brew-log.md"); err != nil {
		fail("record open: %v", err)
	}

	// Edit a note and reconcile.
	edited := filepath.Join(vault, "recipes", "bread.md")
	if err := os.WriteFile(edited, []byte("# Sourdough Bread\n\nNew schedule: bulk ferment five hours.\n"), 0o644); err != nil {
		fail("editing note: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	os.Chtimes(edited, future, future)

	check, err := engine.CheckChanges(ctx)
	if err != nil {
		fail("check changes: %v", err)
	}
	if check.Changed != 1 {
		fail("expected 1 changed document, got %d", check.Changed)
	}

	results, _, err = engine.Search(ctx, "five hour bulk ferment")
	if err != nil {
		fail("search after edit: %v", err)
	}
	if len(results) == 0 || results[0].Path != "recipes/bread.md" {
		fail("edited content not searchable")
	}

	fmt.Fprintln(os.Stderr, "\n=== PASS ===")
	out, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(out))
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "e2e: "+format+"\n", args...)
	os.Exit(1)
}
