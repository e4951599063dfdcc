package domain

import "time"

// AllProvinces is the Province/State sentinel for rows that sum every
// province of a country on a date.
const AllProvinces = "<all>"

// ProvincialCountry is the one country whose province rows are kept
// alongside its aggregate rows.
const ProvincialCountry = "China"

// Metric names one of the two cumulative counts carried by a record.
type Metric string

const (
	Confirmed Metric = "Confirmed"
	Deaths    Metric = "Deaths"
)

// RawTable is a CSV file exactly as published: a header row followed by
// data records.
type RawTable struct {
	Header  []string
	Records [][]string
}

// RawSeriesRow is one (entity, date) observation of a single metric
// before confirmed and death tables are merged.
type RawSeriesRow struct {
	Country  string
	Province string
	Lat      *float64
	Long     *float64
	Date     time.Time
	Value    *int64
}

// UnifiedRecord is one row of the unified table.
type UnifiedRecord struct {
	Country      string    `json:"country"`
	Province     string    `json:"province"`
	Lat          *float64  `json:"lat"`
	Long         *float64  `json:"long"`
	Date         time.Time `json:"date"`
	CumConfirmed *int64    `json:"cum_confirmed"`
	CumDeaths    *int64    `json:"cum_deaths"`
}

// Table is the unified table. Tables are treated as immutable once built.
type Table []UnifiedRecord

// SeriesPoint is one day of a FilteredSeries.
type SeriesPoint struct {
	Date             time.Time `json:"date"`
	DateLabel        string    `json:"date_label"`
	CumConfirmed     *int64    `json:"cum_confirmed"`
	CumDeaths        *int64    `json:"cum_deaths"`
	NewConfirmed     *int64    `json:"new_confirmed"`
	NewDeaths        *int64    `json:"new_deaths"`
	NewConfirmedSMA7 *float64  `json:"new_confirmed_sma7"`
	NewDeathsSMA7    *float64  `json:"new_deaths_sma7"`
}

// FilteredSeries is the per-query daily series for one (country, region).
type FilteredSeries struct {
	Country string        `json:"country"`
	Region  string        `json:"region"`
	Points  []SeriesPoint `json:"points"`
}

// Empty reports whether the series has no data points.
func (s FilteredSeries) Empty() bool {
	return len(s.Points) == 0
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Snapshot is one immutable, fully built version of the unified table.
type Snapshot struct {
	Table     Table
	FetchedAt time.Time
	// Generation increases with every snapshot a process installs.
	Generation uint64
}
