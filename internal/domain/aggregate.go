package domain

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// recordKey identifies a unified record: one entity on one day.
type recordKey struct {
	country  string
	province string
	day      int64
}

func keyOf(country, province string, date time.Time) recordKey {
	return recordKey{country: country, province: province, day: date.Unix()}
}

// group accumulates the rows sharing a recordKey.
type group struct {
	country  string
	province string
	date     time.Time
	sum      int64
	lats     []float64
	longs    []float64
}

// AggregateGlobal sums a global-family metric per (country, date) and
// labels the result with AllProvinces. Province rows of ProvincialCountry
// are also kept unmodified, so that country appears twice per date.
func AggregateGlobal(rows []RawSeriesRow, metric Metric) []UnifiedRecord {
	out := aggregate(rows, metric, func(RawSeriesRow) string { return AllProvinces })
	for _, r := range rows {
		if r.Country == ProvincialCountry {
			out = append(out, fromRaw(r, metric))
		}
	}
	sortRecords(out)
	return out
}

// AggregateUS sums a US-family metric per (country, province, date).
// No AllProvinces row is synthesized; the national total comes from the
// global files.
func AggregateUS(rows []RawSeriesRow, metric Metric) []UnifiedRecord {
	out := aggregate(rows, metric, func(r RawSeriesRow) string { return r.Province })
	sortRecords(out)
	return out
}

// aggregate groups rows by (country, province(row), date). The metric is
// summed with missing values counted as zero; coordinates are medians of
// the rows that have them.
func aggregate(rows []RawSeriesRow, metric Metric, province func(RawSeriesRow) string) []UnifiedRecord {
	groups := make(map[recordKey]*group)
	order := make([]*group, 0)

	for _, r := range rows {
		p := province(r)
		k := keyOf(r.Country, p, r.Date)
		g, ok := groups[k]
		if !ok {
			g = &group{country: r.Country, province: p, date: r.Date}
			groups[k] = g
			order = append(order, g)
		}
		if r.Value != nil {
			g.sum += *r.Value
		}
		if r.Lat != nil {
			g.lats = append(g.lats, *r.Lat)
		}
		if r.Long != nil {
			g.longs = append(g.longs, *r.Long)
		}
	}

	out := make([]UnifiedRecord, 0, len(order))
	for _, g := range order {
		rec := UnifiedRecord{
			Country:  g.country,
			Province: g.province,
			Lat:      median(g.lats),
			Long:     median(g.longs),
			Date:     g.date,
		}
		setMetric(&rec, metric, Int64(g.sum))
		out = append(out, rec)
	}
	return out
}

// MergeMetrics inner-joins confirmed and death records on
// (country, province, date). Records present on only one side are
// dropped; coordinates come from the confirmed side. Each death record
// matches at most once, so the result is never longer than either input.
func MergeMetrics(confirmed, deaths []UnifiedRecord) Table {
	index := make(map[recordKey]int, len(deaths))
	for i, d := range deaths {
		k := keyOf(d.Country, d.Province, d.Date)
		if _, dup := index[k]; !dup {
			index[k] = i
		}
	}

	out := make(Table, 0, min(len(confirmed), len(deaths)))
	for _, c := range confirmed {
		k := keyOf(c.Country, c.Province, c.Date)
		i, ok := index[k]
		if !ok {
			continue
		}
		delete(index, k)
		rec := c
		rec.CumDeaths = deaths[i].CumDeaths
		out = append(out, rec)
	}
	return out
}

// Union concatenates the global and US tables and restores the
// (country, province, date) order. US national rows appear in both; no
// deduplication is attempted.
func Union(global, us Table) Table {
	out := make(Table, 0, len(global)+len(us))
	out = append(out, global...)
	out = append(out, us...)
	sortRecords(out)
	return out
}

func fromRaw(r RawSeriesRow, metric Metric) UnifiedRecord {
	rec := UnifiedRecord{
		Country:  r.Country,
		Province: r.Province,
		Lat:      r.Lat,
		Long:     r.Long,
		Date:     r.Date,
	}
	setMetric(&rec, metric, r.Value)
	return rec
}

func setMetric(rec *UnifiedRecord, metric Metric, v *int64) {
	switch metric {
	case Confirmed:
		rec.CumConfirmed = v
	case Deaths:
		rec.CumDeaths = v
	}
}

// median returns nil for an empty slice. The input is reordered.
func median(vs []float64) *float64 {
	n := len(vs)
	if n == 0 {
		return nil
	}
	slices.Sort(vs)
	if n%2 == 1 {
		return Float64(vs[n/2])
	}
	return Float64((vs[n/2-1] + vs[n/2]) / 2)
}

func sortRecords(recs []UnifiedRecord) {
	slices.SortStableFunc(recs, func(a, b UnifiedRecord) int {
		return cmp.Or(
			strings.Compare(a.Country, b.Country),
			strings.Compare(a.Province, b.Province),
			a.Date.Compare(b.Date),
		)
	})
}
