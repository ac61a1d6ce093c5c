package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dshills/docsearch-mcp/internal/embedder"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// SQLiteIndex implements VectorIndex. Vectors come from an embedder and are
// persisted to a single SQLite file; queries run in memory.
type SQLiteIndex struct {
	emb embedder.Embedder
}

// NewSQLiteIndex creates a vector index backed by emb
func NewSQLiteIndex(emb embedder.Embedder) *SQLiteIndex {
	return &SQLiteIndex{emb: emb}
}

// Build embeds every passage and returns a queryable in-memory index
func (s *SQLiteIndex) Build(ctx context.Context, passages []types.Passage) (Handle, error) {
	if len(passages) == 0 {
		return nil, types.ErrNoPassages
	}

	texts := make([]string, len(passages))
	for i := range passages {
		if err := passages[i].Validate(); err != nil {
			return nil, fmt.Errorf("passage %s#%d: %w", passages[i].RelativePath, passages[i].ChunkIndex, err)
		}
		texts[i] = passages[i].Content
	}

	vectors, err := s.emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return nil, fmt.Errorf("%w: got %d vectors for %d passages", embedder.ErrProviderFailed, len(vectors), len(passages))
	}

	stored := make([]types.Passage, len(passages))
	copy(stored, passages)
	return &MemoryIndex{
		emb:      s.emb,
		passages: stored,
		vectors:  vectors,
		meta: Meta{
			Provider:  s.emb.Provider(),
			Model:     s.emb.Model(),
			Dimension: s.emb.Dimension(),
			Count:     len(stored),
		},
	}, nil
}

// Save writes the index to {dir}/index.db, creating dir if needed. The file
// must not already exist.
func (s *SQLiteIndex) Save(ctx context.Context, h Handle, dir string) error {
	idx, ok := h.(*MemoryIndex)
	if !ok {
		return ErrForeignHandle
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	dbPath := filepath.Join(dir, IndexFileName)
	if _, err := os.Stat(dbPath); err == nil {
		return fmt.Errorf("index file %s already exists", dbPath)
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	if err := writeIndex(ctx, db, idx); err != nil {
		_ = db.Close()
		return err
	}
	// Closing checkpoints the WAL back into the main file
	return db.Close()
}

func writeIndex(ctx context.Context, db *sql.DB, idx *MemoryIndex) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO index_meta (id, provider, model, dimension, passage_count) VALUES (1, ?, ?, ?, ?)`,
		idx.meta.Provider, idx.meta.Model, idx.meta.Dimension, idx.meta.Count)
	if err != nil {
		return fmt.Errorf("insert index meta: %w", err)
	}

	passageStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO passages (
			id, ordinal, relative_path, version, chunk_index, section_label,
			title, content, content_hash, token_count, start_offset, end_offset
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare passage insert: %w", err)
	}
	defer func() { _ = passageStmt.Close() }()

	vectorStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings (passage_id, vector, dimension) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare embedding insert: %w", err)
	}
	defer func() { _ = vectorStmt.Close() }()

	for i, p := range idx.passages {
		id := uuid.NewString()
		_, err = passageStmt.ExecContext(ctx,
			id, i, p.RelativePath, p.Version, p.ChunkIndex, p.SectionLabel,
			p.Title, p.Content, contentHash(p.Content), p.TokenCount, p.Start, p.End)
		if err != nil {
			return fmt.Errorf("insert passage %s#%d: %w", p.RelativePath, p.ChunkIndex, err)
		}
		_, err = vectorStmt.ExecContext(ctx, id, serializeVector(idx.vectors[i]), len(idx.vectors[i]))
		if err != nil {
			return fmt.Errorf("insert embedding %s#%d: %w", p.RelativePath, p.ChunkIndex, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

// Load reads {dir}/index.db into memory. The index must have been built
// with the same provider, model and dimension as this SQLiteIndex's
// embedder.
func (s *SQLiteIndex) Load(ctx context.Context, dir string) (Handle, error) {
	dbPath := filepath.Join(dir, IndexFileName)
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexMissing, dbPath)
		}
		return nil, err
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := checkSchemaVersion(ctx, db); err != nil {
		return nil, err
	}

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, err
	}
	if meta.Provider != s.emb.Provider() || meta.Model != s.emb.Model() {
		return nil, fmt.Errorf("%w: index uses %s/%s, embedder is %s/%s",
			ErrEmbedderMismatch, meta.Provider, meta.Model, s.emb.Provider(), s.emb.Model())
	}
	if meta.Dimension != s.emb.Dimension() {
		return nil, fmt.Errorf("%w: index has %d, embedder produces %d",
			embedder.ErrDimensionMismatch, meta.Dimension, s.emb.Dimension())
	}

	passages, vectors, err := readPassages(ctx, db, meta.Dimension)
	if err != nil {
		return nil, err
	}
	if len(passages) != meta.Count {
		return nil, fmt.Errorf("%w: expected %d passages, found %d", ErrIndexCorrupt, meta.Count, len(passages))
	}

	return &MemoryIndex{emb: s.emb, passages: passages, vectors: vectors, meta: meta}, nil
}

func readMeta(ctx context.Context, db *sql.DB) (Meta, error) {
	var meta Meta
	err := db.QueryRowContext(ctx,
		`SELECT provider, model, dimension, passage_count FROM index_meta WHERE id = 1`).
		Scan(&meta.Provider, &meta.Model, &meta.Dimension, &meta.Count)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: read index meta: %v", ErrIndexCorrupt, err)
	}
	return meta, nil
}

func readPassages(ctx context.Context, db *sql.DB, dimension int) ([]types.Passage, [][]float32, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT p.relative_path, p.version, p.chunk_index, p.section_label, p.title,
		       p.content, p.content_hash, p.token_count, p.start_offset, p.end_offset, e.vector
		FROM passages p
		JOIN embeddings e ON e.passage_id = p.id
		ORDER BY p.ordinal`)
	if err != nil {
		return nil, nil, fmt.Errorf("query passages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var passages []types.Passage
	var vectors [][]float32
	for rows.Next() {
		var p types.Passage
		var hash string
		var blob []byte
		if err := rows.Scan(&p.RelativePath, &p.Version, &p.ChunkIndex, &p.SectionLabel, &p.Title,
			&p.Content, &hash, &p.TokenCount, &p.Start, &p.End, &blob); err != nil {
			return nil, nil, fmt.Errorf("scan passage: %w", err)
		}
		if hash != contentHash(p.Content) {
			return nil, nil, fmt.Errorf("%w: content hash mismatch for %s#%d", ErrIndexCorrupt, p.RelativePath, p.ChunkIndex)
		}
		vector, err := deserializeVector(blob)
		if err != nil {
			return nil, nil, err
		}
		if len(vector) != dimension {
			return nil, nil, fmt.Errorf("%w: %s#%d has %d dimensions", embedder.ErrDimensionMismatch, p.RelativePath, p.ChunkIndex, len(vector))
		}
		passages = append(passages, p)
		vectors = append(vectors, vector)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return passages, vectors, nil
}

// contentHash is stored as hex; SQLite integers are signed and some drivers
// reject uint64 values with the high bit set.
func contentHash(content string) string {
	return fmt.Sprintf("%016x", embedder.ComputeHash(content))
}

// MemoryIndex is a loaded or freshly built index. It is immutable and safe
// for concurrent queries.
type MemoryIndex struct {
	emb      embedder.Embedder
	passages []types.Passage
	vectors  [][]float32
	meta     Meta
}

// QueryTopK implements Handle with an exact cosine scan
func (m *MemoryIndex) QueryTopK(ctx context.Context, query string, k int) ([]types.ScoredPassage, error) {
	if query == "" {
		return nil, types.ErrEmptyQuery
	}
	if k <= 0 || len(m.passages) == 0 {
		return []types.ScoredPassage{}, nil
	}

	qv, err := m.emb.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qv) != m.meta.Dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", embedder.ErrDimensionMismatch, len(qv), m.meta.Dimension)
	}

	candidates := make([]candidate, len(m.vectors))
	for i, v := range m.vectors {
		candidates[i] = candidate{pos: i, score: cosineSimilarity(qv, v)}
	}
	sortCandidates(candidates)

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]types.ScoredPassage, k)
	for i := 0; i < k; i++ {
		out[i] = types.ScoredPassage{
			Passage: m.passages[candidates[i].pos],
			Score:   candidates[i].score,
		}
	}
	return out, nil
}

// Len implements Handle
func (m *MemoryIndex) Len() int { return len(m.passages) }

// Meta returns how the index was built
func (m *MemoryIndex) Meta() Meta { return m.meta }
