package domain

// Resource identifies one of the four upstream time-series files.
type Resource string

const (
	ConfirmedGlobal Resource = "confirmed_global"
	DeathsGlobal    Resource = "deaths_global"
	ConfirmedUS     Resource = "confirmed_us"
	DeathsUS        Resource = "deaths_us"
)

// Resources lists every resource a refresh needs, in a stable order.
var Resources = []Resource{ConfirmedGlobal, DeathsGlobal, ConfirmedUS, DeathsUS}

// FileName returns the upstream CSV file name for the resource.
func (r Resource) FileName() string {
	switch r {
	case ConfirmedGlobal:
		return "time_series_covid19_confirmed_global.csv"
	case DeathsGlobal:
		return "time_series_covid19_deaths_global.csv"
	case ConfirmedUS:
		return "time_series_covid19_confirmed_US.csv"
	case DeathsUS:
		return "time_series_covid19_deaths_US.csv"
	default:
		return ""
	}
}

// Metric returns the count the resource carries.
func (r Resource) Metric() Metric {
	if r == DeathsGlobal || r == DeathsUS {
		return Deaths
	}
	return Confirmed
}

// IsUS reports whether the resource uses the US schema family.
func (r Resource) IsUS() bool {
	return r == ConfirmedUS || r == DeathsUS
}

// Valid reports whether r is one of the known resources.
func (r Resource) Valid() bool {
	return r.FileName() != ""
}
