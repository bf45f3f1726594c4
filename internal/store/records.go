package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CachedResponse is a validated HTTP body keyed by URL.
type CachedResponse struct {
	URL       string
	ETag      string
	Body      []byte
	FetchedAt time.Time
}

// ArtifactRecord describes one wheel written into a shared cache directory.
type ArtifactRecord struct {
	Path         string
	URL          string
	Size         int64
	SHA256       string
	Release      string
	DownloadedAt time.Time
}

// Response returns the cached body and ETag for url.
func (s *Store) Response(ctx context.Context, url string) (CachedResponse, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT url, etag, body, fetched_at FROM http_cache WHERE url = ?", url)
	var resp CachedResponse
	if err := row.Scan(&resp.URL, &resp.ETag, &resp.Body, &resp.FetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CachedResponse{}, false, nil
		}
		return CachedResponse{}, false, fmt.Errorf("read cached response: %w", err)
	}
	return resp, true, nil
}

// SaveResponse stores a body together with its ETag. Responses without an
// ETag are not cached.
func (s *Store) SaveResponse(ctx context.Context, url, etag string, body []byte) error {
	if strings.TrimSpace(etag) == "" {
		return nil
	}
	if body == nil {
		body = []byte{}
	}
	err := s.exec(ctx, `INSERT INTO http_cache (url, etag, body, fetched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET etag = excluded.etag, body = excluded.body, fetched_at = excluded.fetched_at`,
		url, etag, body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save cached response: %w", err)
	}
	return nil
}

// Artifact returns the ledger entry for a cache path.
func (s *Store) Artifact(ctx context.Context, path string) (ArtifactRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT path, url, size, sha256, release, downloaded_at FROM artifacts WHERE path = ?", path)
	var rec ArtifactRecord
	if err := row.Scan(&rec.Path, &rec.URL, &rec.Size, &rec.SHA256, &rec.Release, &rec.DownloadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ArtifactRecord{}, false, nil
		}
		return ArtifactRecord{}, false, fmt.Errorf("read artifact record: %w", err)
	}
	return rec, true, nil
}

// RecordArtifact inserts or replaces the ledger entry for rec.Path.
func (s *Store) RecordArtifact(ctx context.Context, rec ArtifactRecord) error {
	if rec.DownloadedAt.IsZero() {
		rec.DownloadedAt = time.Now().UTC()
	}
	err := s.exec(ctx, `INSERT INTO artifacts (path, url, size, sha256, release, downloaded_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET url = excluded.url, size = excluded.size, sha256 = excluded.sha256,
			release = excluded.release, downloaded_at = excluded.downloaded_at`,
		rec.Path, rec.URL, rec.Size, rec.SHA256, rec.Release, rec.DownloadedAt)
	if err != nil {
		return fmt.Errorf("record artifact: %w", err)
	}
	return nil
}

// Artifacts lists ledger entries whose path starts with prefix, ordered by path.
func (s *Store) Artifacts(ctx context.Context, prefix string) ([]ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT path, url, size, sha256, release, downloaded_at FROM artifacts WHERE substr(path, 1, ?) = ? ORDER BY path",
		len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []ArtifactRecord
	for rows.Next() {
		var rec ArtifactRecord
		if err := rows.Scan(&rec.Path, &rec.URL, &rec.Size, &rec.SHA256, &rec.Release, &rec.DownloadedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ForgetArtifacts deletes ledger entries whose path starts with prefix.
func (s *Store) ForgetArtifacts(ctx context.Context, prefix string) error {
	if err := s.exec(ctx, "DELETE FROM artifacts WHERE substr(path, 1, ?) = ?", len(prefix), prefix); err != nil {
		return fmt.Errorf("forget artifacts: %w", err)
	}
	return nil
}

// ForgetArtifact deletes the ledger entry for exactly path.
func (s *Store) ForgetArtifact(ctx context.Context, path string) error {
	if err := s.exec(ctx, "DELETE FROM artifacts WHERE path = ?", path); err != nil {
		return fmt.Errorf("forget artifact %s: %w", path, err)
	}
	return nil
}

// Meta returns a stored key/value setting.
func (s *Store) Meta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read meta %s: %w", key, err)
	}
	return value, true, nil
}

// SetMeta stores a key/value setting.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	err := s.exec(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}
