// blob/sink.go

// Package blob is where report artifacts end up: a local directory by
// default, or an S3-compatible bucket.
package blob

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/masim/analysis/config"
	log "github.com/sirupsen/logrus"
)

type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Sink stores named artifacts. Keys use forward slashes. Existing artifacts
// with the same key are replaced; nothing is ever removed.
type Sink interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	// Location is a human-readable address of the artifact for logs.
	Location(key string) string
}

// Open returns the sink selected by cfg. The filesystem sink writes under
// outputDir.
func Open(ctx context.Context, cfg config.PublishConfig, outputDir string) (Sink, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return NewFilesystem(outputDir), nil
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
			Prefix:    cfg.Prefix,
		})
	}
	return nil, fmt.Errorf("unknown publish driver %q", cfg.Driver)
}

// ContentType guesses from the key's extension.
func ContentType(key string) string {
	switch ext := path.Ext(key); ext {
	case ".csv":
		return "text/csv"
	case ".npy", "":
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}

// PublishDir copies every regular file below dir into sink, keyed by its
// slash-separated path relative to dir. It returns the number of files.
func PublishDir(ctx context.Context, sink Sink, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := sink.Put(ctx, key, f, ContentType(key)); err != nil {
			return fmt.Errorf("failed to publish %s: %w", key, err)
		}
		log.WithField("location", sink.Location(key)).Debug("Publish: uploaded")
		count++
		return nil
	})
	return count, err
}
