// Package store persists unified-table snapshots to a single local file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/covid-history-service/internal/domain"
	"github.com/klauspost/compress/zstd"
)

// ErrNoSnapshot is returned by Read when no snapshot file exists yet.
var ErrNoSnapshot = errors.New("no snapshot")

const formatVersion = 1

// fileFormat is the JSON document stored, zstd-compressed, in the file.
type fileFormat struct {
	Version   int          `json:"version"`
	FetchedAt time.Time    `json:"fetched_at"`
	Records   domain.Table `json:"records"`
}

// FileStore reads and atomically replaces a snapshot file.
type FileStore struct {
	path    string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewFileStore creates a store for the snapshot at path.
func NewFileStore(path string) (*FileStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	return &FileStore{path: path, encoder: encoder, decoder: decoder}, nil
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string { return s.path }

// Read decodes the persisted snapshot. Generation is left zero; it is
// assigned by whoever installs the snapshot.
func (s *FileStore) Read() (domain.Snapshot, error) {
	compressed, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("decompress snapshot: %w", err)
	}

	var doc fileFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Version != formatVersion {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: unsupported version %d", doc.Version)
	}
	return domain.Snapshot{Table: doc.Records, FetchedAt: doc.FetchedAt}, nil
}

// Write replaces the snapshot file. The new content is written to a
// temporary file in the same directory and renamed over the old one, so
// readers see either the previous or the new snapshot.
func (s *FileStore) Write(snap domain.Snapshot) error {
	data, err := json.Marshal(fileFormat{
		Version:   formatVersion,
		FetchedAt: snap.FetchedAt,
		Records:   snap.Table,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	compressed := s.encoder.EncodeAll(data, make([]byte, 0, len(data)/4))

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error takes precedence
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck,gosec // sync error takes precedence
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Close releases the codec resources.
func (s *FileStore) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}
