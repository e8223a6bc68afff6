package noaa

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/storm-leads/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureName = "StormEvents_details-ftp_v1.0_d2024_c20250401.csv"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", fixtureName))
	require.NoError(t, err)
	return data
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestParseCSV(t *testing.T) {
	records, err := ParseCSV(bytes.NewReader(readFixture(t)))
	require.NoError(t, err)
	require.Len(t, records, 5)

	assert.Equal(t, domain.RawEventRecord{
		EventID:       "1165001",
		EventType:     "Hail",
		Magnitude:     "1.75",
		BeginDateTime: "26-APR-24 18:42:00",
		BeginLat:      "35.22",
		BeginLon:      "-97.44",
		StateFIPS:     "40",
		State:         "OKLAHOMA",
		CZName:        "CLEVELAND",
		Year:          "2024",
	}, records[0])
	assert.Empty(t, records[3].BeginLat)
	assert.Equal(t, "8", records[4].StateFIPS)
}

func TestParseCSV_Empty(t *testing.T) {
	records, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	records, err := ParseCSV(strings.NewReader("EVENT_ID,EVENT_TYPE,MAGNITUDE\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLatestFile(t *testing.T) {
	names := []string{
		"StormEvents_details-ftp_v1.0_d2024_c20250101.csv.gz",
		"StormEvents_details-ftp_v1.0_d2024_c20250401.csv.gz",
		"StormEvents_details-ftp_v1.0_d2023_c20250520.csv.gz",
		"StormEvents_fatalities-ftp_v1.0_d2024_c20250601.csv.gz",
		"README.txt",
	}

	name, ok := latestFile(names, 2024)
	require.True(t, ok)
	assert.Equal(t, "StormEvents_details-ftp_v1.0_d2024_c20250401.csv.gz", name)

	_, ok = latestFile(names, 2022)
	assert.False(t, ok)
}

func TestDirSource_FetchYear(t *testing.T) {
	dir := t.TempDir()
	data := readFixture(t)
	// An older compile of the same year that must be ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "StormEvents_details-ftp_v1.0_d2024_c20240901.csv"), []byte("EVENT_ID\n1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "StormEvents_details-ftp_v1.0_d2024_c20250401.csv.gz"), gzipBytes(t, data), 0o644))

	src := NewDirSource(dir)
	records, err := src.FetchYear(context.Background(), 2024)
	require.NoError(t, err)
	assert.Len(t, records, 5)

	_, err = src.FetchYear(context.Background(), 2019)
	require.ErrorIs(t, err, ErrYearNotFound)
}

func TestDirSource_MissingDir(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "nope")).FetchYear(context.Background(), 2024)
	require.Error(t, err)
}

func TestHTTPSource_FetchYear(t *testing.T) {
	gz := gzipBytes(t, readFixture(t))
	var downloaded string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/csvfiles/":
			_, _ = io.WriteString(w, `<html><body>
<a href="StormEvents_details-ftp_v1.0_d2024_c20250101.csv.gz">old</a>
<a href="StormEvents_details-ftp_v1.0_d2024_c20250401.csv.gz">new</a>
<a href="StormEvents_locations-ftp_v1.0_d2024_c20250401.csv.gz">locations</a>
</body></html>`)
		case "/csvfiles/StormEvents_details-ftp_v1.0_d2024_c20250401.csv.gz":
			downloaded = r.URL.Path
			_, _ = w.Write(gz)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/csvfiles/", 5*time.Second, discardLogger())
	records, err := src.FetchYear(context.Background(), 2024)
	require.NoError(t, err)

	assert.Len(t, records, 5)
	assert.Contains(t, downloaded, "c20250401")
}

func TestHTTPSource_YearMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<a href="StormEvents_details-ftp_v1.0_d2023_c20250101.csv.gz">2023</a>`)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, 5*time.Second, discardLogger()).FetchYear(context.Background(), 2024)
	require.ErrorIs(t, err, ErrYearNotFound)
}

func TestHTTPSource_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, 5*time.Second, discardLogger()).FetchYear(context.Background(), 2024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
