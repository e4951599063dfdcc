package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/covid-history-service/internal/domain"
)

var (
	errUnknownResource = errors.New("unknown resource")
	errEmptyTable      = errors.New("empty table")
)

// readTable parses a whole CSV document. Records may be ragged; the
// normalizer treats missing trailing cells as empty.
func readTable(r io.Reader) (domain.RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return domain.RawTable{}, errEmptyTable
	}
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("csv: read header: %w", err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("csv: read rows: %w", err)
	}
	return domain.RawTable{Header: header, Records: records}, nil
}
