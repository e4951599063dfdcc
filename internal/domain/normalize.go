package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrSchema marks a source table whose header lacks a required column.
var ErrSchema = errors.New("unexpected schema")

var (
	errNegativeCount = errors.New("negative count")
	errNotInteger    = errors.New("not an integer")
)

// dateLayouts are tried in order when parsing a date column header.
var dateLayouts = []string{"1/2/06", "2006-01-02"}

// Normalized is the long-form output of a normalizer: one row per entity
// per date column, plus every cell that had to be treated as missing.
type Normalized struct {
	Metric      Metric
	Rows        []RawSeriesRow
	ParseErrors []*ParseError
}

// schema names the identifying columns of one source family.
type schema struct {
	country  string
	province string
	lat      string
	long     string
	// dropped columns are identifying but carry nothing the unified table keeps.
	dropped map[string]bool
}

var globalSchema = schema{
	country:  "Country/Region",
	province: "Province/State",
	lat:      "Lat",
	long:     "Long",
}

var usSchema = schema{
	country:  "Country_Region",
	province: "Province_State",
	lat:      "Lat",
	long:     "Long_",
	dropped: map[string]bool{
		"UID":          true,
		"iso2":         true,
		"iso3":         true,
		"code3":        true,
		"FIPS":         true,
		"Admin2":       true,
		"Combined_Key": true,
		"Population":   true,
	},
}

// NormalizeGlobal reshapes a global-family table (one column per date)
// into one row per (entity, date).
func NormalizeGlobal(t RawTable, metric Metric) (Normalized, error) {
	return normalize(t, metric, globalSchema)
}

// NormalizeUS reshapes a US-family table. County identifiers, the combined
// key and the optional Population column are dropped; Province_State,
// Country_Region and Long_ are mapped to the global names.
func NormalizeUS(t RawTable, metric Metric) (Normalized, error) {
	return normalize(t, metric, usSchema)
}

// NormalizeResource picks the normalizer matching the resource's schema family.
func NormalizeResource(r Resource, t RawTable) (Normalized, error) {
	if r.IsUS() {
		return NormalizeUS(t, r.Metric())
	}
	return NormalizeGlobal(t, r.Metric())
}

type dateColumn struct {
	index int
	name  string
	date  time.Time
}

func normalize(t RawTable, metric Metric, s schema) (Normalized, error) {
	index := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		index[cleanHeader(h)] = i
	}

	var cols [4]int
	for i, name := range []string{s.country, s.province, s.lat, s.long} {
		pos, ok := index[name]
		if !ok {
			return Normalized{}, fmt.Errorf("%w: missing column %q", ErrSchema, name)
		}
		cols[i] = pos
	}
	countryCol, provinceCol, latCol, longCol := cols[0], cols[1], cols[2], cols[3]

	out := Normalized{Metric: metric}

	var dates []dateColumn
	for i, h := range t.Header {
		name := cleanHeader(h)
		if i == countryCol || i == provinceCol || i == latCol || i == longCol || s.dropped[name] {
			continue
		}
		d, err := parseDate(name)
		if err != nil {
			out.ParseErrors = append(out.ParseErrors, &ParseError{Column: name, Value: name, Err: err})
			continue
		}
		dates = append(dates, dateColumn{index: i, name: name, date: d})
	}
	if len(dates) == 0 {
		return Normalized{}, fmt.Errorf("%w: no parseable date column", ErrSchema)
	}

	out.Rows = make([]RawSeriesRow, 0, len(t.Records)*len(dates))
	for r, rec := range t.Records {
		rowNum := r + 1
		country := strings.TrimSpace(cell(rec, countryCol))
		province := strings.TrimSpace(cell(rec, provinceCol))

		lat, err := parseCoordinate(cell(rec, latCol))
		if err != nil {
			out.ParseErrors = append(out.ParseErrors, &ParseError{Row: rowNum, Column: s.lat, Value: cell(rec, latCol), Err: err})
		}
		long, err := parseCoordinate(cell(rec, longCol))
		if err != nil {
			out.ParseErrors = append(out.ParseErrors, &ParseError{Row: rowNum, Column: s.long, Value: cell(rec, longCol), Err: err})
		}

		for _, dc := range dates {
			raw := cell(rec, dc.index)
			v, err := parseCount(raw)
			if err != nil {
				out.ParseErrors = append(out.ParseErrors, &ParseError{Row: rowNum, Column: dc.name, Value: raw, Err: err})
			}
			out.Rows = append(out.Rows, RawSeriesRow{
				Country:  country,
				Province: province,
				Lat:      lat,
				Long:     long,
				Date:     dc.date,
				Value:    v,
			})
		}
	}

	return out, nil
}

// cleanHeader trims whitespace and a UTF-8 byte order mark.
func cleanHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}

// cell returns the i-th field of a record, or "" for short records.
func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func parseDate(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range dateLayouts {
		d, err := time.Parse(layout, s)
		if err == nil {
			return d, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("parse date: %w", firstErr)
}

// parseCount parses a cumulative count. Empty cells are missing without
// error; integral floats such as "12.0" are accepted.
func parseCount(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		switch {
		case ferr != nil || math.IsNaN(f) || f != math.Trunc(f):
			return nil, errNotInteger
		case f < 0:
			return nil, errNegativeCount
		case f >= math.MaxInt64:
			return nil, errNotInteger
		}
		v = int64(f)
	}
	if v < 0 {
		return nil, errNegativeCount
	}
	return &v, nil
}

func parseCoordinate(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("parse coordinate: %q", s)
	}
	return &f, nil
}
