package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

const chunkColumns = `id, document_id, content, title, source, chunk_index, chunk_type, word_count, page`

// SearchByPhrase returns chunks whose content contains the phrase,
// case-insensitively, newest documents first.
func (r *DocumentRepository) SearchByPhrase(ctx context.Context, phrase string, docIDs []string, limit int) ([]domain.Chunk, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" || limit <= 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := []any{"%" + escapeLike(phrase) + "%"}
	sb.WriteString(`SELECT ` + chunkColumns + ` FROM chunks WHERE content ILIKE $1`)
	args = appendScopeFilter(&sb, args, docIDs)
	args = append(args, limit)
	fmt.Fprintf(&sb, ` ORDER BY created_at DESC, chunk_index ASC LIMIT $%d`, len(args))

	return r.queryChunks(ctx, "search by phrase", sb.String(), args)
}

// SearchByKeywords returns chunks containing any of the keywords,
// case-insensitively, newest documents first.
func (r *DocumentRepository) SearchByKeywords(ctx context.Context, keywords []string, docIDs []string, limit int) ([]domain.Chunk, error) {
	terms := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			terms = append(terms, kw)
		}
	}
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + chunkColumns + ` FROM chunks WHERE (`)
	args := make([]any, 0, len(terms)+2)
	for i, term := range terms {
		if i > 0 {
			sb.WriteString(` OR `)
		}
		args = append(args, "%"+escapeLike(term)+"%")
		fmt.Fprintf(&sb, `content ILIKE $%d`, len(args))
	}
	sb.WriteString(`)`)
	args = appendScopeFilter(&sb, args, docIDs)
	args = append(args, limit)
	fmt.Fprintf(&sb, ` ORDER BY created_at DESC, chunk_index ASC LIMIT $%d`, len(args))

	return r.queryChunks(ctx, "search by keywords", sb.String(), args)
}

func appendScopeFilter(sb *strings.Builder, args []any, docIDs []string) []any {
	if len(docIDs) == 0 {
		return args
	}
	args = append(args, docIDs)
	fmt.Fprintf(sb, ` AND document_id = ANY($%d)`, len(args))
	return args
}

func (r *DocumentRepository) queryChunks(ctx context.Context, operation, query string, args []any) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", operation, err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", operation, err)
	}
	return chunks, nil
}

func scanChunk(rows *sql.Rows) (domain.Chunk, error) {
	var chunk domain.Chunk
	var chunkType string
	err := rows.Scan(
		&chunk.ID, &chunk.DocumentID, &chunk.Content,
		&chunk.Metadata.Title, &chunk.Metadata.Source, &chunk.Metadata.ChunkIndex,
		&chunkType, &chunk.Metadata.WordCount, &chunk.Metadata.Page,
	)
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("scan chunk: %w", err)
	}
	chunk.Metadata.Type = domain.ChunkType(chunkType)
	return chunk, nil
}

// escapeLike neutralizes LIKE metacharacters in user-supplied terms.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
