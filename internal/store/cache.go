package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PutResponse upserts a response cache entry, last-writer-wins on key.
func (s *Store) PutResponse(ctx context.Context, key, responseJSON string, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache (key, response_json, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET response_json = excluded.response_json, created_at = excluded.created_at`,
		key, responseJSON, createdAt)
	if err != nil {
		return fmt.Errorf("put response cache entry %q: %w", key, err)
	}
	return nil
}

// GetResponse looks up a response cache entry by key. ok is false on a
// cache miss, not an error.
func (s *Store) GetResponse(ctx context.Context, key string) (row CacheRow, ok bool, err error) {
	err = s.db.GetContext(ctx, &row, `SELECT * FROM cache WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheRow{}, false, nil
	}
	if err != nil {
		return CacheRow{}, false, fmt.Errorf("get response cache entry %q: %w", key, err)
	}
	return row, true, nil
}

// PutEmbedding upserts an embedding cache entry keyed
// "emb|model|sha256(text)".
func (s *Store) PutEmbedding(ctx context.Context, key, model string, dims int, vec []byte, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (key, model, dims, vec, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET model = excluded.model, dims = excluded.dims, vec = excluded.vec, created_at = excluded.created_at`,
		key, model, dims, vec, createdAt)
	if err != nil {
		return fmt.Errorf("put embedding %q: %w", key, err)
	}
	return nil
}

// GetEmbedding looks up an embedding cache entry by key.
func (s *Store) GetEmbedding(ctx context.Context, key string) (row EmbeddingRow, ok bool, err error) {
	err = s.db.GetContext(ctx, &row, `SELECT * FROM embeddings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return EmbeddingRow{}, false, nil
	}
	if err != nil {
		return EmbeddingRow{}, false, fmt.Errorf("get embedding %q: %w", key, err)
	}
	if len(row.Vec)%4 != 0 {
		return EmbeddingRow{}, false, fmt.Errorf("embedding %q has blob length %d, not a multiple of 4", key, len(row.Vec))
	}
	return row, true, nil
}

// PutJudgeCacheEntry upserts a judge cache entry.
func (s *Store) PutJudgeCacheEntry(ctx context.Context, row JudgeCacheRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO judge_cache (key, provider, model, rubric_id, rubric_version, created_at, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET provider = excluded.provider, model = excluded.model,
			rubric_id = excluded.rubric_id, rubric_version = excluded.rubric_version,
			created_at = excluded.created_at, payload_json = excluded.payload_json`,
		row.Key, row.Provider, row.Model, row.RubricID, row.RubricVersion, row.CreatedAt, row.PayloadJSON)
	if err != nil {
		return fmt.Errorf("put judge cache entry %q: %w", row.Key, err)
	}
	return nil
}

// GetJudgeCacheEntry looks up a judge cache entry by key.
func (s *Store) GetJudgeCacheEntry(ctx context.Context, key string) (row JudgeCacheRow, ok bool, err error) {
	err = s.db.GetContext(ctx, &row, `SELECT * FROM judge_cache WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return JudgeCacheRow{}, false, nil
	}
	if err != nil {
		return JudgeCacheRow{}, false, fmt.Errorf("get judge cache entry %q: %w", key, err)
	}
	return row, true, nil
}
