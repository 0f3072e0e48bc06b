// Package answer wires retrieval, the confidence gate, and generation into
// the question-answering pipeline.
package answer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperfocal/veridoc/internal/chunker"
	"github.com/hyperfocal/veridoc/internal/confidence"
	"github.com/hyperfocal/veridoc/internal/embedding"
	"github.com/hyperfocal/veridoc/internal/extract"
	"github.com/hyperfocal/veridoc/internal/generate"
	"github.com/hyperfocal/veridoc/internal/models"
	"github.com/hyperfocal/veridoc/internal/session"
	"github.com/hyperfocal/veridoc/internal/storage"
	"github.com/hyperfocal/veridoc/internal/vector"
)

// ErrEmptyQuestion is returned when a chat request carries no question text.
var ErrEmptyQuestion = errors.New("question must not be empty")

// NoDocumentsMessage is the answer returned when the queried corpus holds no
// readable documents. It is a normal answer, not an error.
const NoDocumentsMessage = "No documents are available to answer from. Please upload a document first."

// Config carries the pipeline tunables.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	// Threshold is the confidence gate cutoff on mean similarity.
	Threshold float64
	// TopK is the number of chunks retrieved per question.
	TopK int

	// Global corpus locations, used when a request carries no session id.
	GlobalDocumentsDir  string
	GlobalEmbeddingsDir string
	GlobalIndexDir      string

	// Extensions are the recognized document file extensions.
	Extensions []string
}

// Orchestrator runs the full answer pipeline: ensure embeddings, build or
// load the index, retrieve, gate on confidence, then refuse or generate.
type Orchestrator struct {
	cfg       Config
	embedder  embedding.Embedder
	generator generate.Generator
	chunks    storage.ChunkStore
	sessions  *session.Store
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	refuser   *confidence.Refuser
	logger    *zap.Logger

	// buildLocks holds one mutex per corpus (session id, "" for global).
	// Index builds and ingestion for the same corpus are serialized.
	buildLocks sync.Map
}

// New constructs an orchestrator. generator may be nil, in which case every
// confident answer uses the deterministic context fallback.
func New(cfg Config, embedder embedding.Embedder, generator generate.Generator,
	chunks storage.ChunkStore, sessions *session.Store, extractor *extract.Extractor,
	refuser *confidence.Refuser, logger *zap.Logger) (*Orchestrator, error) {

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = confidence.DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if refuser == nil {
		refuser = confidence.NewRefuser(0)
	}
	return &Orchestrator{
		cfg:       cfg,
		embedder:  embedder,
		generator: generator,
		chunks:    chunks,
		sessions:  sessions,
		extractor: extractor,
		chunker:   ch,
		refuser:   refuser,
		logger:    logger,
	}, nil
}

// corpus resolves the storage locations for one session id. The empty id is
// the shared global corpus.
type corpus struct {
	sessionID     string
	documentsDir  string
	embeddingsDir string
	indexDir      string
}

func (o *Orchestrator) resolveCorpus(sessionID string) (corpus, error) {
	if sessionID == "" {
		return corpus{
			documentsDir:  o.cfg.GlobalDocumentsDir,
			embeddingsDir: o.cfg.GlobalEmbeddingsDir,
			indexDir:      o.cfg.GlobalIndexDir,
		}, nil
	}
	paths, err := o.sessions.Paths(sessionID)
	if err != nil {
		return corpus{}, err
	}
	if !o.sessions.Exists(sessionID) {
		return corpus{}, session.ErrNotFound
	}
	return corpus{
		sessionID:     sessionID,
		documentsDir:  paths.Uploads,
		embeddingsDir: paths.Embeddings,
		indexDir:      paths.Index,
	}, nil
}

func (o *Orchestrator) lockFor(sessionID string) *sync.Mutex {
	mu, _ := o.buildLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Answer runs one question through the pipeline for the given corpus.
// The confidence gate runs strictly before generation: a low-scoring
// question never reaches the generator.
func (o *Orchestrator) Answer(ctx context.Context, question, sessionID string) (string, error) {
	if question == "" {
		return "", ErrEmptyQuestion
	}
	c, err := o.resolveCorpus(sessionID)
	if err != nil {
		return "", err
	}

	docs, err := o.extractor.ListDocuments(c.documentsDir, o.cfg.Extensions)
	if err != nil {
		return "", fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return NoDocumentsMessage, nil
	}

	ix, entries, err := o.prepareIndex(ctx, c, docs)
	if errors.Is(err, vector.ErrNoEmbeddings) {
		return NoDocumentsMessage, nil
	}
	if err != nil {
		return "", err
	}

	query, err := o.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}
	if len(query) != ix.Dimensions() {
		return "", fmt.Errorf("question embedding has %d dimensions, index expects %d", len(query), ix.Dimensions())
	}

	scored, err := vector.Retrieve(ix, query, entries, o.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("retrieve: %w", err)
	}

	distances := make([]float64, len(scored))
	for i, sc := range scored {
		distances[i] = sc.Distance
	}
	result := confidence.Score(distances, o.cfg.Threshold)
	o.logger.Debug("confidence gate",
		zap.Float64("score", result.Score),
		zap.Float64("threshold", o.cfg.Threshold),
		zap.Bool("confident", result.Confident),
		zap.Int("hits", len(scored)),
	)
	if !result.Confident {
		return o.refuser.Message(question), nil
	}

	contextChunks, err := o.resolveChunkTexts(ctx, c, scored, docs)
	if err != nil {
		return "", err
	}
	return o.generateAnswer(ctx, contextChunks, question), nil
}

// prepareIndex makes sure every document in docs has persisted embeddings,
// then builds or loads the corpus index. Serialized per corpus.
func (o *Orchestrator) prepareIndex(ctx context.Context, c corpus, docs map[string]string) (*vector.FlatIndex, []models.IndexEntry, error) {
	mu := o.lockFor(c.sessionID)
	mu.Lock()
	defer mu.Unlock()

	store := embedding.NewDiskStore(c.embeddingsDir, o.logger)
	embeddedNew := false
	for name, text := range docs {
		if store.HasDocument(name) {
			continue
		}
		if err := o.embedDocument(ctx, store, c.sessionID, name, text); err != nil {
			return nil, nil, err
		}
		embeddedNew = true
	}
	if embeddedNew {
		// A persisted index predating the new documents would silently
		// miss them; force a rebuild instead.
		if err := vector.RemovePersisted(c.indexDir); err != nil {
			return nil, nil, fmt.Errorf("remove stale index: %w", err)
		}
	}
	return vector.BuildOrLoad(c.embeddingsDir, c.indexDir, o.logger)
}

func (o *Orchestrator) embedDocument(ctx context.Context, store *embedding.DiskStore, sessionID, name, text string) error {
	pieces := o.chunker.Chunk(text)
	if len(pieces) == 0 {
		o.logger.Warn("document produced no chunks", zap.String("document", name))
		return nil
	}
	if err := o.chunks.SaveChunks(ctx, sessionID, name, pieces); err != nil {
		return fmt.Errorf("persist chunks for %s: %w", name, err)
	}
	if _, err := store.EmbedDocument(ctx, o.embedder, name, pieces); err != nil {
		return fmt.Errorf("embed %s: %w", name, err)
	}
	return nil
}

// resolveChunkTexts maps retrieval hits back to chunk text, packaged as
// "Source 1".."Source N" in retrieval order so generated citations line up
// with the ids in the prompt. The chunk store is authoritative; re-chunking
// the source document is the fallback when a row is missing (embeddings
// written by an older run).
func (o *Orchestrator) resolveChunkTexts(ctx context.Context, c corpus, scored []models.ScoredChunk, docs map[string]string) ([]models.ContextChunk, error) {
	rechunked := make(map[string][]string)
	out := make([]models.ContextChunk, 0, len(scored))
	for _, sc := range scored {
		idx, err := embedding.ChunkIndexFromRef(sc.ChunkRef)
		if err != nil {
			return nil, fmt.Errorf("chunk ref %q: %w", sc.ChunkRef, err)
		}

		text, err := o.chunks.GetChunk(ctx, c.sessionID, sc.Document, idx)
		if err != nil {
			if !errors.Is(err, storage.ErrChunkNotFound) {
				return nil, fmt.Errorf("load chunk %d of %s: %w", idx, sc.Document, err)
			}
			pieces, ok := rechunked[sc.Document]
			if !ok {
				pieces = o.chunker.Chunk(docs[sc.Document])
				rechunked[sc.Document] = pieces
			}
			if idx < 0 || idx >= len(pieces) {
				o.logger.Warn("retrieval hit has no recoverable text",
					zap.String("document", sc.Document), zap.Int("chunk", idx))
				continue
			}
			text = pieces[idx]
		}

		id := fmt.Sprintf("Source %d", len(out)+1)
		o.logger.Debug("context chunk",
			zap.String("id", id),
			zap.String("document", sc.Document),
			zap.Int("chunk", idx),
			zap.Float64("distance", sc.Distance),
		)
		out = append(out, models.ContextChunk{ID: id, Text: text})
	}
	return out, nil
}

// generateAnswer calls the generator and falls back to the deterministic
// context dump on any upstream failure or when no generator is configured.
func (o *Orchestrator) generateAnswer(ctx context.Context, chunks []models.ContextChunk, question string) string {
	if o.generator == nil {
		return generate.FallbackAnswer(chunks, question)
	}
	text, err := o.generator.Generate(ctx, chunks, question)
	if err != nil || text == "" {
		if err != nil {
			o.logger.Warn("generation failed, using context fallback", zap.Error(err))
		}
		return generate.FallbackAnswer(chunks, question)
	}
	return text
}

// IngestUpload extracts, chunks, embeds, and re-indexes one stored upload.
// Runs under the corpus build lock so concurrent chats see either the old or
// the new index, never a partial one.
func (o *Orchestrator) IngestUpload(ctx context.Context, sessionID, storedPath string) error {
	c, err := o.resolveCorpus(sessionID)
	if err != nil {
		return err
	}

	text, err := o.extractor.Extract(storedPath)
	if err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(storedPath), err)
	}

	mu := o.lockFor(c.sessionID)
	mu.Lock()
	defer mu.Unlock()

	store := embedding.NewDiskStore(c.embeddingsDir, o.logger)
	name := filepath.Base(storedPath)
	if err := o.embedDocument(ctx, store, c.sessionID, name, text); err != nil {
		return err
	}
	if err := vector.RemovePersisted(c.indexDir); err != nil {
		return fmt.Errorf("remove stale index: %w", err)
	}
	if _, _, err := vector.BuildOrLoad(c.embeddingsDir, c.indexDir, o.logger); err != nil && !errors.Is(err, vector.ErrNoEmbeddings) {
		return fmt.Errorf("rebuild index: %w", err)
	}
	total, err := o.chunks.CountChunks(ctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("count session chunks: %w", err)
	}
	o.logger.Info("document ingested",
		zap.String("session_id", sessionID),
		zap.String("document", name),
		zap.Int64("chunks_in_session", total),
	)
	return nil
}

// ReindexGlobal reconciles the global corpus with its documents directory:
// new documents are embedded, embeddings of removed documents are pruned,
// and the index is rebuilt. Used by the filesystem watcher.
func (o *Orchestrator) ReindexGlobal(ctx context.Context) error {
	c, err := o.resolveCorpus("")
	if err != nil {
		return err
	}
	docs, err := o.extractor.ListDocuments(c.documentsDir, o.cfg.Extensions)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	mu := o.lockFor("")
	mu.Lock()
	defer mu.Unlock()

	store := embedding.NewDiskStore(c.embeddingsDir, o.logger)
	embedded, err := store.Documents()
	if err != nil {
		return err
	}
	for _, name := range embedded {
		if _, ok := docs[name]; ok {
			continue
		}
		if err := store.RemoveDocument(name); err != nil {
			return err
		}
		o.logger.Info("pruned embeddings for removed document", zap.String("document", name))
	}
	for name, text := range docs {
		if store.HasDocument(name) {
			continue
		}
		if err := o.embedDocument(ctx, store, "", name, text); err != nil {
			return err
		}
	}
	if err := vector.RemovePersisted(c.indexDir); err != nil {
		return fmt.Errorf("remove stale index: %w", err)
	}
	if _, _, err := vector.BuildOrLoad(c.embeddingsDir, c.indexDir, o.logger); err != nil && !errors.Is(err, vector.ErrNoEmbeddings) {
		return fmt.Errorf("rebuild index: %w", err)
	}
	return nil
}

// DeleteSession removes a session's files and its stored chunk rows.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	removed, err := o.sessions.Delete(sessionID)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}
	if err := o.chunks.DeleteSession(ctx, sessionID); err != nil {
		return true, fmt.Errorf("delete session chunks: %w", err)
	}
	o.buildLocks.Delete(sessionID)
	return true, nil
}

// Sessions exposes the session store for the transport layer.
func (o *Orchestrator) Sessions() *session.Store { return o.sessions }
