package store

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Store receives run artifacts.
type Store interface {
	// Put copies the file at localPath to key.
	Put(ctx context.Context, key, localPath string) error
}

// Publish uploads every file below workDir to st. Keys are
// prefix/<run directory name>/<relative path> with forward slashes. At most
// limit uploads run at once; limit < 1 means one at a time. The first failure
// cancels the remaining uploads and is returned.
func Publish(ctx context.Context, st Store, workDir, prefix string, limit int) (int, error) {
	files, err := listFiles(workDir)
	if err != nil {
		return 0, err
	}
	base := filepath.Base(filepath.Clean(workDir))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, limit))
	for _, rel := range files {
		local := filepath.Join(workDir, rel)
		key := path.Join(prefix, base, filepath.ToSlash(rel))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := st.Put(ctx, key, local); err != nil {
				return fmt.Errorf("failed to publish %s: %w", key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(files), nil
}

// listFiles returns the regular files below dir as sorted relative paths.
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list run files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// RunPublisher publishes whole run directories to a Store.
type RunPublisher struct {
	Store Store
	Limit int
}

// PublishRun uploads the run at workDir under prefix.
func (p RunPublisher) PublishRun(ctx context.Context, workDir, prefix string) (int, error) {
	return Publish(ctx, p.Store, workDir, prefix, p.Limit)
}

// Open selects a store: S3 when bucket is set, otherwise a LocalStore rooted
// at dir.
func Open(bucket, region, dir string, logger *log.Logger) (Store, error) {
	if bucket != "" {
		return NewS3Store(bucket, region, logger)
	}
	if dir == "" {
		return nil, fmt.Errorf("no publish destination: set a bucket or a directory")
	}
	return LocalStore{Dir: dir}, nil
}
