package domain

import (
	"cmp"
	"slices"
)

// Latest returns, for every (country, province) entity in t, the record
// with the most recent date, ordered by country then province.
func Latest(t Table) Table {
	type entity struct{ country, province string }
	latest := make(map[entity]int)
	for i, r := range t {
		k := entity{r.Country, r.Province}
		if j, ok := latest[k]; !ok || r.Date.After(t[j].Date) {
			latest[k] = i
		}
	}

	out := make(Table, 0, len(latest))
	for _, i := range latest {
		out = append(out, t[i])
	}
	slices.SortFunc(out, func(a, b UnifiedRecord) int {
		return cmp.Or(
			cmp.Compare(a.Country, b.Country),
			cmp.Compare(a.Province, b.Province),
		)
	})
	return out
}
