// Command inspect loads a snapshot, checks the structural invariants of the
// unified table, and prints the daily series for one country and region.
// The snapshot comes from the cache file written by the server, or is
// rebuilt from a directory of upstream CSV files.
//
// Usage:
//
//	go run ./cmd/inspect -cache data/snapshot.json.zst -country China -region Hubei
//	go run ./cmd/inspect -source-dir ./testdata/jhu -country US -out us.json
package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/couchcryptid/covid-history-service/internal/adapter/source"
	"github.com/couchcryptid/covid-history-service/internal/domain"
	"github.com/couchcryptid/covid-history-service/internal/observability"
	"github.com/couchcryptid/covid-history-service/internal/pipeline"
	"github.com/couchcryptid/covid-history-service/internal/store"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	cachePath string
	sourceDir string
	country   string
	region    string
	out       string
}

func main() {
	var opts options
	flag.StringVar(&opts.cachePath, "cache", "data/snapshot.json.zst", "snapshot file written by the server")
	flag.StringVar(&opts.sourceDir, "source-dir", "", "rebuild the table from upstream CSV files in this directory instead")
	flag.StringVar(&opts.country, "country", "", "country to print a series for")
	flag.StringVar(&opts.region, "region", domain.AllProvinces, "province/state, or <all> for the country total")
	flag.StringVar(&opts.out, "out", "", "write the series as JSON to this path")
	flag.Parse()

	os.Exit(run(context.Background(), opts, os.Stdout))
}

func run(ctx context.Context, opts options, w io.Writer) int {
	snap, err := loadSnapshot(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	fmt.Fprintln(w, "=== Snapshot Inspection ===")
	fmt.Fprintf(w, "Fetched at: %s\n", snap.FetchedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Records:    %d\n", len(snap.Table))
	fmt.Fprintf(w, "Countries:  %d\n", len(domain.ListCountries(snap.Table)))
	fmt.Fprintln(w)

	phases := []*phase{
		checkUniqueKeys(snap.Table),
		checkOrdering(snap.Table),
		checkProvincialTotals(snap.Table),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == 20 {
				fmt.Fprintf(w, "  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if opts.country != "" {
		if err := printSeries(w, snap.Table, opts); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
	}

	if !allPassed {
		return 2
	}
	return 0
}

func loadSnapshot(ctx context.Context, opts options) (domain.Snapshot, error) {
	if opts.sourceDir != "" {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		builder := pipeline.NewBuilder(source.NewDirSource(opts.sourceDir), logger, observability.NewMetricsForTesting())
		table, err := builder.Build(ctx)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("build from %s: %w", opts.sourceDir, err)
		}
		return domain.Snapshot{Table: table, FetchedAt: time.Now().UTC()}, nil
	}

	st, err := store.NewFileStore(opts.cachePath)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer st.Close()

	snap, err := st.Read()
	if errors.Is(err, store.ErrNoSnapshot) {
		return domain.Snapshot{}, fmt.Errorf("no snapshot at %s; run the server once or pass -source-dir", opts.cachePath)
	}
	return snap, err
}

func checkUniqueKeys(t domain.Table) *phase {
	p := &phase{name: "Unique (country, province, date) keys"}
	type key struct {
		country, province string
		date              time.Time
	}
	seen := make(map[key]struct{}, len(t))
	for _, r := range t {
		k := key{r.Country, r.Province, r.Date}
		if _, dup := seen[k]; dup {
			p.errorf("duplicate %s/%s on %s", r.Country, r.Province, r.Date.Format(time.DateOnly))
		}
		seen[k] = struct{}{}
	}
	return p
}

func checkOrdering(t domain.Table) *phase {
	p := &phase{name: "Records ordered by country, province, date"}
	for i := 1; i < len(t); i++ {
		a, b := t[i-1], t[i]
		if compareRecords(a, b) > 0 {
			p.errorf("record %d (%s/%s %s) sorts after record %d", i-1, a.Country, a.Province, a.Date.Format(time.DateOnly), i)
		}
	}
	return p
}

// checkProvincialTotals verifies that the aggregate rows of the provincial
// country equal the per-date sum of its province rows.
func checkProvincialTotals(t domain.Table) *phase {
	p := &phase{name: "Provincial country totals match province sums"}
	totals := make(map[time.Time]int64)
	sums := make(map[time.Time]int64)
	for _, r := range t {
		if r.Country != domain.ProvincialCountry || r.CumConfirmed == nil {
			continue
		}
		if r.Province == domain.AllProvinces {
			totals[r.Date] = *r.CumConfirmed
		} else {
			sums[r.Date] += *r.CumConfirmed
		}
	}
	dates := make([]time.Time, 0, len(totals))
	for d := range totals {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	for _, d := range dates {
		if totals[d] != sums[d] {
			p.errorf("%s: total %d, province sum %d", d.Format(time.DateOnly), totals[d], sums[d])
		}
	}
	return p
}

func compareRecords(a, b domain.UnifiedRecord) int {
	return cmp.Or(
		cmp.Compare(a.Country, b.Country),
		cmp.Compare(a.Province, b.Province),
		a.Date.Compare(b.Date),
	)
}

func printSeries(w io.Writer, t domain.Table, opts options) error {
	series, err := domain.Query(t, opts.country, opts.region)
	var qerr *domain.QueryError
	if errors.As(err, &qerr) {
		fmt.Fprintf(w, "\nNo data for %s / %s. Regions: %v\n", opts.country, opts.region, domain.ListRegions(t, opts.country))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s / %s (%d days)\n", series.Country, series.Region, len(series.Points))
	fmt.Fprintf(w, "  %-13s %12s %10s %10s %8s %10s\n", "date", "confirmed", "new", "new 7d", "deaths", "new")
	for _, pt := range series.Points {
		fmt.Fprintf(w, "  %-13s %12s %10s %10s %8s %10s\n",
			pt.DateLabel,
			fmtInt(pt.CumConfirmed), fmtInt(pt.NewConfirmed), fmtFloat(pt.NewConfirmedSMA7),
			fmtInt(pt.CumDeaths), fmtInt(pt.NewDeaths))
	}

	if opts.out != "" {
		if err := writeJSON(opts.out, series); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nWrote %s\n", opts.out)
	}
	return nil
}

func fmtInt(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal series: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
