package domain

import "fmt"

// FetchError reports a source that could not be retrieved or whose
// schema is unusable. It fails the refresh that hit it.
type FetchError struct {
	Resource Resource
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a single malformed cell. The cell is treated as a
// missing value and normalization continues.
type ParseError struct {
	Resource Resource // set by the caller that knows which file was parsed
	Row      int      // 1-based data record index; 0 for the header
	Column   string
	Value    string
	Err      error
}

func (e *ParseError) Error() string {
	var msg string
	if e.Row == 0 {
		msg = fmt.Sprintf("header column %q: %v", e.Column, e.Err)
	} else {
		msg = fmt.Sprintf("row %d column %q value %q: %v", e.Row, e.Column, e.Value, e.Err)
	}
	if e.Resource != "" {
		return string(e.Resource) + ": " + msg
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// QueryError reports a (country, region) selection with no matching rows.
// Callers should render it as an empty series.
type QueryError struct {
	Country string
	Region  string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("no rows for country %q region %q", e.Country, e.Region)
}
