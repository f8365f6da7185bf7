// Package storage is the blob store for uploaded photos, attachments and images.
// Rows only ever hold the relative path returned by Save.
package storage

//go:generate mockgen -source=store.go -destination=mocks/store_mock.go -package=mocks Store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/oggyb/socialtinder/internal/config"
)

// Store is an opaque blob store keyed by relative paths.
type Store interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Delete(ctx context.Context, path string) error
	URL(path string) string
}

// New picks the backend from STORAGE_DRIVER.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case "s3":
		return NewS3Store(ctx, cfg)
	case "disk", "":
		return NewDiskStore(cfg.Storage.DiskRoot, cfg.Storage.BaseURL), nil
	case "memory":
		return NewMemoryStore(cfg.Storage.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
}

// Save stores f under dir with a generated name and returns the path.
func Save(ctx context.Context, s Store, dir string, f File) (string, error) {
	ext := strings.ToLower(path.Ext(f.Name))
	p := path.Join(dir, uuid.NewString()+ext)
	if err := s.Put(ctx, p, f.Data, f.ContentType); err != nil {
		return "", fmt.Errorf("store %s: %w", p, err)
	}
	return p, nil
}

// SaveAll stores every file, removing the ones already written if one fails.
func SaveAll(ctx context.Context, s Store, dir string, files []File) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		p, err := Save(ctx, s, dir, f)
		if err != nil {
			_ = DeleteAll(ctx, s, paths...)
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// DeleteAll removes every non-empty path and joins the failures.
func DeleteAll(ctx context.Context, s Store, paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := s.Delete(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// Cleanup deletes blobs after the owning rows are gone. Failures are logged,
// not returned: the rows are already committed.
func Cleanup(ctx context.Context, s Store, log *slog.Logger, paths ...string) {
	if err := DeleteAll(ctx, s, paths...); err != nil && log != nil {
		log.Warn("blob cleanup failed", "err", err)
	}
}

// URLPtr resolves an optional path, keeping nil as nil.
func URLPtr(s Store, p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	u := s.URL(*p)
	return &u
}

// URLs resolves a list of paths.
func URLs(s Store, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, s.URL(p))
	}
	return out
}

func joinURL(base, p string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}
