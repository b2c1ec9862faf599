package rag

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/nidhogg/pgrag/internal/store"
	"go.uber.org/zap"
)

// DefaultTopK is the number of hits Search returns when none is given.
const DefaultTopK = 5

// Embedder turns texts into vectors, one per text, in order.
type Embedder interface {
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists embedded documents and answers nearest-neighbour queries.
type VectorStore interface {
	InsertDocuments(ctx context.Context, docs []store.Document) (int64, error)
	Search(ctx context.Context, vec []float32, k int) ([]store.Result, error)
}

// Orchestrator wires the embedder to the vector store for ingestion and
// retrieval.
type Orchestrator struct {
	embedder Embedder
	store    VectorStore
	logger   *zap.Logger
}

// NewOrchestrator creates a new RAG orchestrator.
func NewOrchestrator(embedder Embedder, vs VectorStore, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{embedder: embedder, store: vs, logger: logger}
}

// ReadDocuments returns every line of r with surrounding whitespace removed,
// skipping lines that are blank after trimming.
func ReadDocuments(r io.Reader) ([]string, error) {
	var docs []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			docs = append(docs, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return docs, nil
}

// IngestFile reads path and ingests its documents.
func (o *Orchestrator) IngestFile(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	docs, err := ReadDocuments(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return o.Ingest(ctx, docs)
}

// Ingest embeds every document and inserts all of them in one bulk write.
// Nothing is written unless every batch embeds successfully. An empty docs
// is a no-op reporting zero rows.
func (o *Orchestrator) Ingest(ctx context.Context, docs []string) (int64, error) {
	if len(docs) == 0 {
		o.logger.Info("No documents to ingest")
		return 0, nil
	}
	runID := uuid.New().String()
	log := o.logger.With(zap.String("run_id", runID))
	log.Info("Ingesting documents", zap.Int("count", len(docs)))

	vecs, err := o.embedder.EmbedAll(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("embed documents: %w", err)
	}
	if len(vecs) != len(docs) {
		return 0, fmt.Errorf("embed documents: got %d vectors for %d documents", len(vecs), len(docs))
	}

	rows := make([]store.Document, len(docs))
	for i, text := range docs {
		rows[i] = store.Document{Text: text, Embedding: vecs[i]}
	}

	n, err := o.store.InsertDocuments(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("store documents: %w", err)
	}
	log.Info("Ingestion complete", zap.Int64("rows", n))
	return n, nil
}

// Search embeds query and returns at most topK stored documents, most similar
// first. A non-positive topK means DefaultTopK.
func (o *Orchestrator) Search(ctx context.Context, query string, topK int) ([]store.Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	qvec, err := o.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := o.store.Search(ctx, qvec, topK)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}
	o.logger.Debug("Search complete", zap.Int("hits", len(results)), zap.Int("top_k", topK))
	return results, nil
}

// FormatResults renders results one per line as "<rank>. <score> <text>",
// ranks starting at 1 and scores to three decimals.
func FormatResults(results []store.Result) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%2d.  %.3f  %s\n", i+1, r.Score, r.Text)
	}
	return b.String()
}
