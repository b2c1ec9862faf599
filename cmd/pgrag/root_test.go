package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nidhogg/pgrag/internal/config"
	"github.com/nidhogg/pgrag/internal/store"
	"go.uber.org/zap"
)

type fakePipeline struct {
	rows     int64
	ingested []string
	queries  []string
	topK     int
	results  []store.Result
}

func (f *fakePipeline) IngestFile(_ context.Context, path string) (int64, error) {
	f.ingested = append(f.ingested, path)
	return f.rows, nil
}

func (f *fakePipeline) Search(_ context.Context, query string, topK int) ([]store.Result, error) {
	f.queries = append(f.queries, query)
	f.topK = topK
	return f.results, nil
}

// run executes the command and reports whether the factory was reached.
func run(t *testing.T, p *fakePipeline, args ...string) (string, bool, error) {
	t.Helper()
	built := false
	cmd := newRootCmd(func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (pipeline, error) {
		built = true
		return p, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), built, err
}

func setEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GEMINI_API_KEY", key)
}

func TestNoFlagsPrintsHelp(t *testing.T) {
	setEnv(t, "")
	out, built, err := run(t, &fakePipeline{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built {
		t.Error("pipeline built without an operation")
	}
	if !strings.Contains(out, "--ingest") || !strings.Contains(out, "--query") {
		t.Errorf("help output missing flags:\n%s", out)
	}
}

func TestMissingAPIKeyStopsBeforeWork(t *testing.T) {
	setEnv(t, "")
	_, built, err := run(t, &fakePipeline{}, "--query", "hello")
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("got %v, want ErrMissingAPIKey", err)
	}
	if built {
		t.Error("pipeline built despite missing credential")
	}
}

func TestIngestAndQueryExclusive(t *testing.T) {
	setEnv(t, "k")
	_, built, err := run(t, &fakePipeline{}, "--ingest", "a.txt", "--query", "q")
	if err == nil {
		t.Fatal("expected error for both flags")
	}
	if built {
		t.Error("pipeline built for invalid invocation")
	}
}

func TestIngest(t *testing.T) {
	setEnv(t, "k")
	p := &fakePipeline{rows: 2}
	out, _, err := run(t, p, "--ingest", "slack.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.ingested) != 1 || p.ingested[0] != "slack.txt" {
		t.Errorf("ingested %v", p.ingested)
	}
	if out != "Inserted 2 rows\n" {
		t.Errorf("got output %q", out)
	}
}

func TestIngestNothing(t *testing.T) {
	setEnv(t, "k")
	out, _, err := run(t, &fakePipeline{}, "--ingest", "blank.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Inserted 0 rows\n" {
		t.Errorf("got output %q", out)
	}
}

func TestQuery(t *testing.T) {
	setEnv(t, "k")
	p := &fakePipeline{results: []store.Result{
		{Text: "vectors are lists of numbers", Score: 0.91234},
		{Text: "tables hold rows", Score: 0.5},
	}}

	out, _, err := run(t, p, "--query", "How do vectors work?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.topK != 5 {
		t.Errorf("got top-k %d, want default 5", p.topK)
	}
	want := " 1.  0.912  vectors are lists of numbers\n 2.  0.500  tables hold rows\n"
	if out != want {
		t.Errorf("got output %q, want %q", out, want)
	}

	if _, _, err := run(t, p, "--query", "x", "-k", "2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.topK != 2 {
		t.Errorf("got top-k %d, want 2", p.topK)
	}
}

func TestConfigFlag(t *testing.T) {
	setEnv(t, "")
	path := filepath.Join(t.TempDir(), "pgrag.json")
	body := `{"database": {"port": "5432", "table": "docs", "metric": "cosine"},
	"embedding": {"provider": "gemini", "api_key": "from-file", "dimension": "768", "batch_size": "200", "pace_ms": "0"}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	_, built, err := run(t, &fakePipeline{}, "--config", path, "--query", "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !built {
		t.Error("pipeline not built with key from config file")
	}
}

func TestNewPipeline(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{Host: "localhost", Port: 5432, Name: "vectordb", User: "demo", Table: "docs", Metric: "cosine"},
		Embedding: config.EmbeddingConfig{
			Provider: "openai", APIKey: "k", Dimension: 3, BatchSize: 10,
		},
	}
	p, err := newPipeline(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("nil pipeline")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("debug", false); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := newLogger("loud", false); err == nil {
		t.Error("expected error for bad level")
	}
}
