// Package dataset loads survey extracts from a source, derives indicators once
// and publishes immutable snapshots for the query engine.
package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/JoacoLucen/EPH-Insight-App/internal/adapters/storage"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
)

var errNoExtracts = errors.New("no survey extracts found")

// ExtractsPrefix is the folder of the extracts bucket that uploads land in
// and that BucketSource reads by default.
const ExtractsPrefix = "extracts"

// Entry identifies one file of a source. Version changes whenever the content does.
type Entry struct {
	Name    string
	Size    int64
	Version string
}

// Source lists and reads survey extracts.
type Source interface {
	// Location names the source in logs and errors.
	Location() string
	// List returns the extracts in name order.
	List(ctx context.Context) ([]Entry, error)
	// Read returns the content of one extract.
	Read(ctx context.Context, name string) ([]byte, error)
}

// Fingerprint hashes the identity of every entry, so any added, removed or
// modified file yields a new value.
func Fingerprint(entries []Entry) string {
	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s|%d|%s\n", e.Name, e.Size, e.Version)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// isExtract accepts zipped extracts and loose survey tables.
func isExtract(name string) bool {
	if storage.IsArchive(name) {
		return true
	}
	_, ok := microdata.KindOf(name)
	return ok
}

// DirSource reads extracts from a local directory, recursively.
type DirSource struct {
	dir string
}

// NewDirSource returns a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Location returns the directory.
func (s *DirSource) Location() string { return s.dir }

// List walks the directory. A missing directory or one without extracts is
// reported as a missing source.
func (s *DirSource) List(ctx context.Context) ([]Entry, error) {
	if _, err := os.Stat(s.dir); err != nil {
		return nil, apperr.SourceMissing(s.dir, err)
	}

	var entries []Entry
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isExtract(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Name:    filepath.ToSlash(rel),
			Size:    info.Size(),
			Version: strconv.FormatInt(info.ModTime().UnixNano(), 10),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.dir, err)
	}
	if len(entries) == 0 {
		return nil, apperr.SourceMissing(s.dir, errNoExtracts)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Read returns the content of one extract.
func (s *DirSource) Read(_ context.Context, name string) ([]byte, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(name))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.SourceMissing(path, err)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// BucketSource reads extracts from an object storage bucket.
type BucketSource struct {
	store  storage.StorageService
	bucket string
	prefix string
}

// NewBucketSource returns a source over the objects of bucket under prefix.
func NewBucketSource(store storage.StorageService, bucket, prefix string) *BucketSource {
	return &BucketSource{store: store, bucket: bucket, prefix: strings.TrimPrefix(prefix, "/")}
}

// Location returns bucket/prefix.
func (s *BucketSource) Location() string { return s.bucket + "/" + s.prefix }

// List returns the extracts stored under the prefix.
func (s *BucketSource) List(ctx context.Context) ([]Entry, error) {
	objects, err := s.store.ListObjects(ctx, s.bucket, s.prefix)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(objects))
	for _, obj := range objects {
		if !isExtract(obj.Key) {
			continue
		}
		entries = append(entries, Entry{Name: obj.Key, Size: obj.Size, Version: obj.ETag})
	}
	if len(entries) == 0 {
		return nil, apperr.SourceMissing(s.Location(), errNoExtracts)
	}
	return entries, nil
}

// Read downloads one object.
func (s *BucketSource) Read(ctx context.Context, name string) ([]byte, error) {
	body, err := s.store.DownloadFile(ctx, s.bucket, name)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", name, err)
	}
	return data, nil
}
