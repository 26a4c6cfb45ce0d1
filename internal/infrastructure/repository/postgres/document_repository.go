package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

const uniqueViolationCode = "23505"

// DocumentRepository persists documents and their chunks and serves the
// candidate-generation queries of the lexical search.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	source TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT documents_content_hash_key UNIQUE (content_hash)
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	title TEXT NOT NULL,
	source TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	chunk_type TEXT NOT NULL,
	word_count INTEGER NOT NULL DEFAULT 0,
	page INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_created_at ON chunks(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// CreateWithChunks inserts the document and all of its chunks in one
// transaction. A content_hash unique violation surfaces as
// domain.ErrDuplicateContent so ingestion can resolve the dedup race.
func (r *DocumentRepository) CreateWithChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO documents (id, title, content, source, content_hash, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, doc.ID, doc.Title, doc.Content, doc.Source, doc.ContentHash, metaJSON, doc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrDuplicateContent, "insert document", err)
		}
		return fmt.Errorf("insert document: %w", err)
	}

	now := time.Now().UTC()
	for _, chunk := range chunks {
		_, err = tx.ExecContext(ctx, `
INSERT INTO chunks (id, document_id, content, title, source, chunk_index, chunk_type, word_count, page, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
			chunk.ID, chunk.DocumentID, chunk.Content,
			chunk.Metadata.Title, chunk.Metadata.Source, chunk.Metadata.ChunkIndex,
			string(chunk.Metadata.Type), chunk.Metadata.WordCount, chunk.Metadata.Page, now,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Metadata.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ingest tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) FindByContentHash(ctx context.Context, hash string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, content, source, content_hash, metadata, created_at
FROM documents
WHERE content_hash = $1
`, hash)
	return scanDocument(row, "find by content hash")
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, content, source, content_hash, metadata, created_at
FROM documents
WHERE id = $1
`, id)
	return scanDocument(row, "get by id")
}

// Delete removes the document; chunks go with it via ON DELETE CASCADE.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", sql.ErrNoRows)
	}
	return nil
}

func scanDocument(row *sql.Row, operation string) (*domain.Document, error) {
	var doc domain.Document
	var metaRaw []byte
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Source, &doc.ContentHash, &metaRaw, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, operation, err)
		}
		return nil, fmt.Errorf("%s: scan document: %w", operation, err)
	}
	if err := json.Unmarshal(metaRaw, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("%s: unmarshal metadata: %w", operation, err)
	}
	return &doc, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
