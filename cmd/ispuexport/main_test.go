package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/couchcryptid/ispu-monitor-service/internal/report"
)

const stationsJSON = `[
  {"id": 1, "code": "DKI1", "name": "Bundaran HI", "province": "DKI Jakarta", "city": "Jakarta Pusat", "ispu": 87, "latitude": -6.19, "longitude": 106.82, "is_active": true},
  {"id": 2, "code": "JBR4", "name": "Dago", "province": "Jawa Barat", "city": "Bandung", "ispu": 142, "is_active": true},
  {"id": 3, "name": "Kebon Jeruk", "province": "DKI Jakarta"}
]`

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_CSVFromBareArray(t *testing.T) {
	out := filepath.Join(t.TempDir(), "export.csv")
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"-input", writeInput(t, stationsJSON), "-out", out, "-sort", "ispu_desc"}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "wrote 3 rows")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "No,ID Stasiun,Nama"))
	assert.Equal(t, "1,JBR4,Dago,Jawa Barat,Bandung,N/A,N/A,142,TIDAK SEHAT,0,0,Aktif", lines[1])
	assert.Equal(t, "2,DKI1,Bundaran HI,DKI Jakarta,Jakarta Pusat,N/A,N/A,87,SEDANG,-6.19,106.82,Aktif", lines[2])
	assert.Equal(t, "3,3,Kebon Jeruk,DKI Jakarta,N/A,N/A,N/A,0,N/A,0,0,Tidak Aktif", lines[3])
}

func TestRun_JSONFromEnvelopeWithSearch(t *testing.T) {
	input := writeInput(t, `{"success": true, "data": `+stationsJSON+`}`)
	out := filepath.Join(t.TempDir(), "export.json")

	err := run(context.Background(), []string{"-input", input, "-format", "json", "-q", "jakarta", "-out", out}, io.Discard)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Bundaran HI", rows[0]["Nama"])
	assert.Equal(t, "Kebon Jeruk", rows[1]["Nama"])
}

func TestRun_DefaultOutputName(t *testing.T) {
	t.Chdir(t.TempDir())

	err := run(context.Background(), []string{"-input", writeInput(t, stationsJSON), "-format", "xlsx", "-basename", "laporan"}, io.Discard)
	require.NoError(t, err)

	info, err := os.Stat("laporan.xlsx")
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRun_AirQualityFromAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/air-quality/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success": true, "data": [
		  {"station": {"id": 1, "name": "Bundaran HI"}, "ispu": 87, "pm25": 30.5, "timestamp": "2024-04-26T08:00:00Z"}
		]}`)
	}))
	t.Cleanup(srv.Close)

	out := filepath.Join(t.TempDir(), "aq.csv")
	args := []string{"-api-url", srv.URL + "/api/v1", "-dataset", "air-quality", "-tz", "Asia/Jakarta", "-out", out}
	require.NoError(t, run(context.Background(), args, io.Discard))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t,
		"No,Stasiun,ISPU,PM2.5,PM10,SO2,CO,O3,NO2,HC,Waktu\n"+
			`1,Bundaran HI,87,30.5,0,0,0,0,0,0,"26/4/2024, 15.00.00"`,
		string(data))
}

func TestRun_FlagErrors(t *testing.T) {
	input := writeInput(t, stationsJSON)
	tests := []struct {
		name string
		args []string
	}{
		{"no source", []string{}},
		{"both sources", []string{"-input", input, "-api-url", "http://localhost"}},
		{"bad format", []string{"-input", input, "-format", "pdf"}},
		{"file with air-quality", []string{"-input", input, "-dataset", "air-quality"}},
		{"unknown dataset", []string{"-api-url", "http://localhost", "-dataset", "weather"}},
		{"bad timezone", []string{"-input", input, "-tz", "Mars/Olympus"}},
		{"province without api", []string{"-input", input, "-province", "Banten"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, run(context.Background(), tt.args, io.Discard))
		})
	}
}

func TestReadStations_Errors(t *testing.T) {
	_, err := readStations(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = readStations(writeInput(t, `{"success": false, "error": {"message": "db offline"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db offline")

	_, err = readStations(writeInput(t, `not json`))
	require.Error(t, err)

	_, err = readStations(writeInput(t, `{"success": false, "data": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API request failed")
}

func TestRun_ProvinceFromAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stations", r.URL.Path)
		assert.Equal(t, "DKI Jakarta", r.URL.Query().Get("province"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success": true, "data": [{"id": 1, "code": "DKI1", "name": "Bundaran HI", "province": "DKI Jakarta", "ispu": 87}]}`)
	}))
	t.Cleanup(srv.Close)

	out := filepath.Join(t.TempDir(), "dki.csv")
	var stdout bytes.Buffer
	args := []string{"-api-url", srv.URL + "/api/v1", "-province", "DKI Jakarta", "-out", out}
	require.NoError(t, run(context.Background(), args, &stdout))
	assert.Contains(t, stdout.String(), "wrote 1 rows")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1,DKI1,Bundaran HI,DKI Jakarta")
}

func TestRun_XLSXSheetFollowsDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success": true, "data": [{"station": {"name": "Dago"}, "ispu": 42}]}`)
	}))
	t.Cleanup(srv.Close)

	tests := []struct {
		name      string
		args      []string
		wantSheet string
	}{
		{"stations", []string{"-input", writeInput(t, stationsJSON)}, report.SheetStations},
		{"air quality", []string{"-api-url", srv.URL, "-dataset", "air-quality"}, report.SheetAirQuality},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "export.xlsx")
			args := append(tt.args, "-format", "xlsx", "-out", out)
			require.NoError(t, run(context.Background(), args, io.Discard))

			f, err := xlsx.OpenFile(out)
			require.NoError(t, err)
			require.Len(t, f.Sheets, 1)
			assert.Equal(t, tt.wantSheet, f.Sheets[0].Name)
		})
	}
}
