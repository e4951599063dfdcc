package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/covid-history-service/internal/domain"
)

// DirSource reads resources from a local directory holding the upstream
// file names, e.g. a checkout of the JHU repository.
type DirSource struct {
	dir string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Fetch(ctx context.Context, r domain.Resource) (domain.RawTable, error) {
	if !r.Valid() {
		return domain.RawTable{}, &domain.FetchError{Resource: r, Err: errUnknownResource}
	}
	if err := ctx.Err(); err != nil {
		return domain.RawTable{}, &domain.FetchError{Resource: r, Err: err}
	}

	f, err := os.Open(filepath.Join(s.dir, r.FileName()))
	if err != nil {
		return domain.RawTable{}, &domain.FetchError{Resource: r, Err: fmt.Errorf("open: %w", err)}
	}
	defer f.Close()

	table, err := readTable(f)
	if err != nil {
		return domain.RawTable{}, &domain.FetchError{Resource: r, Err: err}
	}
	return table, nil
}
