package domain

import (
	"slices"
	"time"
)

// smaWindow is the length of the trailing mean applied to daily counts.
const smaWindow = 7

// DateLabelLayout formats SeriesPoint.DateLabel, e.g. "Mar 05, 2020".
const DateLabelLayout = "Jan 02, 2006"

// ListCountries returns the distinct countries of t in ascending order.
func ListCountries(t Table) []string {
	seen := make(map[string]struct{})
	for _, r := range t {
		seen[r.Country] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// ListRegions returns AllProvinces followed by the distinct provinces of
// country in ascending order. A country without sub-national rows, or an
// unknown country, yields only AllProvinces.
func ListRegions(t Table, country string) []string {
	seen := make(map[string]struct{})
	for _, r := range t {
		if r.Country == country && r.Province != AllProvinces {
			seen[r.Province] = struct{}{}
		}
	}
	regions := make([]string, 0, len(seen))
	for p := range seen {
		regions = append(regions, p)
	}
	slices.Sort(regions)
	return append([]string{AllProvinces}, regions...)
}

// Query selects the daily rows of (country, region), differences the
// cumulative counts and smooths the daily counts with a 7-day trailing
// mean. When nothing matches it returns an empty series and a *QueryError.
//
// For region AllProvinces the country's AllProvinces rows are used when
// the table has them; otherwise every province row is summed per date.
// Sums count missing values as zero. Matching rows are deliberately not
// all re-summed: a country with both an aggregate row and province rows
// would otherwise be counted twice.
func Query(t Table, country, region string) (FilteredSeries, error) {
	series := FilteredSeries{Country: country, Region: region, Points: []SeriesPoint{}}

	var points []SeriesPoint
	if region == AllProvinces {
		points = countryTotals(t, country)
	} else {
		for _, r := range t {
			if r.Country == country && r.Province == region {
				points = append(points, SeriesPoint{Date: r.Date, CumConfirmed: r.CumConfirmed, CumDeaths: r.CumDeaths})
			}
		}
	}
	if len(points) == 0 {
		return series, &QueryError{Country: country, Region: region}
	}

	slices.SortStableFunc(points, func(a, b SeriesPoint) int { return a.Date.Compare(b.Date) })

	newConfirmed := Diff(cumulative(points, func(p SeriesPoint) *int64 { return p.CumConfirmed }))
	newDeaths := Diff(cumulative(points, func(p SeriesPoint) *int64 { return p.CumDeaths }))
	confirmedSMA := SMA(newConfirmed, smaWindow)
	deathsSMA := SMA(newDeaths, smaWindow)

	for i := range points {
		points[i].NewConfirmed = newConfirmed[i]
		points[i].NewDeaths = newDeaths[i]
		points[i].NewConfirmedSMA7 = confirmedSMA[i]
		points[i].NewDeathsSMA7 = deathsSMA[i]
		points[i].DateLabel = points[i].Date.Format(DateLabelLayout)
	}
	series.Points = points
	return series, nil
}

// countryTotals sums the rows of country per date.
func countryTotals(t Table, country string) []SeriesPoint {
	hasAggregate := false
	for _, r := range t {
		if r.Country == country && r.Province == AllProvinces {
			hasAggregate = true
			break
		}
	}

	type total struct {
		date      time.Time
		confirmed int64
		deaths    int64
	}
	byDay := make(map[int64]*total)
	var order []*total
	for _, r := range t {
		if r.Country != country || (hasAggregate && r.Province != AllProvinces) {
			continue
		}
		day := r.Date.Unix()
		tot, ok := byDay[day]
		if !ok {
			tot = &total{date: r.Date}
			byDay[day] = tot
			order = append(order, tot)
		}
		if r.CumConfirmed != nil {
			tot.confirmed += *r.CumConfirmed
		}
		if r.CumDeaths != nil {
			tot.deaths += *r.CumDeaths
		}
	}

	points := make([]SeriesPoint, 0, len(order))
	for _, tot := range order {
		points = append(points, SeriesPoint{
			Date:         tot.date,
			CumConfirmed: Int64(tot.confirmed),
			CumDeaths:    Int64(tot.deaths),
		})
	}
	return points
}

func cumulative(points []SeriesPoint, get func(SeriesPoint) *int64) []*int64 {
	out := make([]*int64, len(points))
	for i, p := range points {
		out[i] = get(p)
	}
	return out
}

// Diff returns first differences of a cumulative series. The first value
// is zero; a difference touching a missing value is missing.
func Diff(cum []*int64) []*int64 {
	out := make([]*int64, len(cum))
	for i := range cum {
		switch {
		case i == 0:
			out[i] = Int64(0)
		case cum[i] == nil || cum[i-1] == nil:
			out[i] = nil
		default:
			out[i] = Int64(*cum[i] - *cum[i-1])
		}
	}
	return out
}

// SMA returns the trailing arithmetic mean over window values. Positions
// before a full window, or whose window holds a missing value, are nil.
func SMA(vs []*int64, window int) []*float64 {
	out := make([]*float64, len(vs))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(vs); i++ {
		var sum int64
		complete := true
		for _, v := range vs[i-window+1 : i+1] {
			if v == nil {
				complete = false
				break
			}
			sum += *v
		}
		if complete {
			out[i] = Float64(float64(sum) / float64(window))
		}
	}
	return out
}
