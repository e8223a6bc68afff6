// Package noaa reads NOAA Storm Events "details" files, either from the
// public bulk CSV directory or from a local mirror of it.
package noaa

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/storm-leads/internal/domain"
	"github.com/jszwec/csvutil"
)

// ErrYearNotFound is returned when no details file exists for a year.
var ErrYearNotFound = errors.New("no storm events file for year")

var detailsFile = regexp.MustCompile(`StormEvents_details-ftp_v1\.0_d(\d{4})_c(\d{8})\.csv(\.gz)?`)

// HTTPSource fetches details files from the NOAA bulk download directory.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPSource creates a source reading from baseURL, the directory
// listing that holds StormEvents_details-ftp_v1.0_dYYYY_cYYYYMMDD.csv.gz.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchYear downloads the most recently compiled details file for year.
func (s *HTTPSource) FetchYear(ctx context.Context, year int) ([]domain.RawEventRecord, error) {
	index, err := s.get(ctx, s.baseURL+"/")
	if err != nil {
		return nil, fmt.Errorf("list storm event files: %w", err)
	}
	defer index.Close()
	listing, err := io.ReadAll(index)
	if err != nil {
		return nil, fmt.Errorf("read storm event listing: %w", err)
	}

	name, ok := latestFile(detailsFile.FindAllString(string(listing), -1), year)
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrYearNotFound, year)
	}
	s.logger.Info("downloading storm events", "year", year, "file", name)

	body, err := s.get(ctx, s.baseURL+"/"+name)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	defer body.Close()
	return decodeFile(name, body)
}

func (s *HTTPSource) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("noaa status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// DirSource reads details files from a local directory laid out like the
// NOAA bulk directory. Both gzipped and plain CSV files are accepted.
type DirSource struct {
	dir string
}

// NewDirSource creates a source reading from dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// FetchYear reads the most recently compiled details file for year.
func (s *DirSource) FetchYear(ctx context.Context, year int) ([]domain.RawEventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	name, ok := latestFile(names, year)
	if !ok {
		return nil, fmt.Errorf("%w %d in %s", ErrYearNotFound, year, s.dir)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	return decodeFile(name, f)
}

// latestFile picks the details file for year with the newest compile date.
func latestFile(names []string, year int) (string, bool) {
	want := fmt.Sprintf("%04d", year)
	var matches []string
	for _, n := range names {
		m := detailsFile.FindStringSubmatch(n)
		if m == nil || m[0] != n || m[1] != want {
			continue
		}
		matches = append(matches, n)
	}
	if len(matches) == 0 {
		return "", false
	}
	slices.SortFunc(matches, func(a, b string) int {
		return strings.Compare(detailsFile.FindStringSubmatch(a)[2], detailsFile.FindStringSubmatch(b)[2])
	})
	return matches[len(matches)-1], true
}

func decodeFile(name string, r io.Reader) ([]domain.RawEventRecord, error) {
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", name, err)
		}
		defer gz.Close()
		r = gz
	}
	records, err := ParseCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return records, nil
}

// ParseCSV decodes a details file by header name. Columns other than the
// ones RawEventRecord names are ignored.
func ParseCSV(r io.Reader) ([]domain.RawEventRecord, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true

	dec, err := csvutil.NewDecoder(cr)
	if errors.Is(err, io.EOF) {
		return []domain.RawEventRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	records := make([]domain.RawEventRecord, 0)
	for {
		var rec domain.RawEventRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
