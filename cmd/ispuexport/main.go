// Command ispuexport writes a station or latest air-quality export without
// running the service. Stations come from a JSON file (an API envelope or a
// bare array) or straight from the monitoring API.
//
// Usage:
//
//	go run ./cmd/ispuexport -input data/stations.json -format csv
//	go run ./cmd/ispuexport -api-url http://localhost:8080/api/v1 -format xlsx -q jakarta -sort ispu_desc
//	go run ./cmd/ispuexport -api-url http://localhost:8080/api/v1 -province "DKI Jakarta" -format json
//	go run ./cmd/ispuexport -api-url http://localhost:8080/api/v1 -dataset air-quality -out latest.csv
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/ispu-monitor-service/internal/adapter/ispuapi"
	"github.com/couchcryptid/ispu-monitor-service/internal/domain"
	"github.com/couchcryptid/ispu-monitor-service/internal/report"
)

const (
	datasetStations   = "stations"
	datasetAirQuality = "air-quality"
)

type options struct {
	input    string
	apiURL   string
	dataset  string
	format   report.Format
	search   string
	province string
	sort     domain.SortOrder
	out      string
	basename string
	loc      *time.Location
}

func main() {
	_ = godotenv.Load()
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	var fetch func(context.Context, options) (report.Table, error)
	switch opts.dataset {
	case datasetStations:
		fetch = stationRecords
	case datasetAirQuality:
		fetch = airQualityRecords
	default:
		return fmt.Errorf("unknown dataset %q (allowed: %s, %s)", opts.dataset, datasetStations, datasetAirQuality)
	}

	table, err := fetch(ctx, opts)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := report.Encode(&buf, opts.format, table); err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, buf.Bytes(), 0o644); err != nil { //nolint:gosec // export files are meant to be shared
		return fmt.Errorf("write %s: %w", opts.out, err)
	}

	fmt.Fprintf(stdout, "wrote %d rows to %s\n", len(table.Records), opts.out)
	return nil
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("ispuexport", flag.ContinueOnError)
	input := fs.String("input", "", "JSON file with stations (API envelope or bare array)")
	apiURL := fs.String("api-url", "", "monitoring API base URL, e.g. http://localhost:8080/api/v1")
	dataset := fs.String("dataset", datasetStations, "dataset to export: stations or air-quality")
	format := fs.String("format", "csv", "output format: csv, json or xlsx")
	search := fs.String("q", "", "only export stations matching this search term")
	province := fs.String("province", "", "with -api-url, fetch station metadata for one province from /stations")
	sortOrder := fs.String("sort", "", "station order: input, name, ispu_desc or ispu_asc")
	out := fs.String("out", "", "output path (default <basename>.<format>)")
	basename := fs.String("basename", sharedcfg.EnvOrDefault("EXPORT_BASENAME", "stasiun-pemantauan-ispu"), "output file basename")
	tz := fs.String("tz", sharedcfg.EnvOrDefault("EXPORT_TIMEZONE", "Asia/Jakarta"), "time zone for air-quality timestamps")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if (*input == "") == (*apiURL == "") {
		return options{}, errors.New("exactly one of -input or -api-url is required")
	}
	if *input != "" && *dataset != datasetStations {
		return options{}, errors.New("-input only supports the stations dataset")
	}
	if *province != "" && (*apiURL == "" || *dataset != datasetStations) {
		return options{}, errors.New("-province requires -api-url and the stations dataset")
	}

	f, err := report.ParseFormat(*format)
	if err != nil {
		return options{}, err
	}
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return options{}, fmt.Errorf("invalid -tz %q: %w", *tz, err)
	}

	o := options{
		input:    *input,
		apiURL:   *apiURL,
		dataset:  *dataset,
		format:   f,
		search:   *search,
		province: *province,
		sort:     domain.ParseSortOrder(*sortOrder),
		out:      *out,
		basename: *basename,
		loc:      loc,
	}
	if o.out == "" {
		o.out = f.Filename(o.basename)
	}
	return o, nil
}

func stationRecords(ctx context.Context, o options) (report.Table, error) {
	var (
		stations []domain.Station
		err      error
	)
	switch {
	case o.input != "":
		stations, err = readStations(o.input)
	case o.province != "":
		stations, err = newClient(o).Stations(ctx, o.province)
	default:
		stations, err = newClient(o).MapStations(ctx)
	}
	if err != nil {
		return report.Table{}, err
	}

	view := domain.BuildView(domain.Snapshot{Stations: stations}, domain.Query{Search: o.search, Sort: o.sort})
	return report.Table{
		Sheet:   report.SheetStations,
		Headers: domain.StationExportHeaders(),
		Records: domain.ToExportRows(view.Stations),
	}, nil
}

func airQualityRecords(ctx context.Context, o options) (report.Table, error) {
	items, err := newClient(o).LatestAirQuality(ctx)
	if err != nil {
		return report.Table{}, err
	}
	return report.Table{
		Sheet:   report.SheetAirQuality,
		Records: domain.ToAirQualityRows(items, o.loc),
	}, nil
}

func newClient(o options) *ispuapi.Client {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return ispuapi.NewClient(o.apiURL, 30*time.Second, nil, logger)
}

// readStations accepts either {"success": true, "data": [...]} or a bare array.
func readStations(path string) ([]domain.Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var env domain.Envelope[[]domain.Station]
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if !env.Success {
			msg := "API request failed"
			if env.Error != nil && env.Error.Message != "" {
				msg = env.Error.Message
			}
			return nil, fmt.Errorf("%s: %s", path, msg)
		}
		return env.Data, nil
	}

	var stations []domain.Station
	if err := json.Unmarshal(data, &stations); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return stations, nil
}
