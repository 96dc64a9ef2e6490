package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nao1215/imgharvest/internal/model"
)

// UnsetDepth marks a job whose depth ResolveJobs fills in.
const UnsetDepth = -1

// jobsDelimiter separates columns in a job list.
const jobsDelimiter = ';'

// LoadJobs reads a seed job list from path.
//
// The file is delimiter-separated with ';' and a header row naming the
// columns url, folder and depth, in any order. Only url is required.
// Blank rows are skipped; a blank folder or depth is left for
// ResolveJobs.
//
//	url;folder;depth
//	https://example.com/gallery;example;2
//	https://photos.example.org/;;
func LoadJobs(path string) ([]model.Job, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided job list path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJobsFile, err)
	}
	defer f.Close()

	jobs, err := ParseJobs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return jobs, nil
}

// ParseJobs parses a seed job list. See LoadJobs for the format.
func ParseJobs(r io.Reader) ([]model.Job, error) {
	reader := csv.NewReader(r)
	reader.Comma = jobsDelimiter
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrInvalidJobsFile)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidJobsFile, err)
	}
	cols, err := jobColumns(header)
	if err != nil {
		return nil, err
	}

	var jobs []model.Job
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJobsFile, err)
		}
		line, _ := reader.FieldPos(0)

		job, ok, err := parseJobRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidJobsFile, line, err)
		}
		if ok {
			jobs = append(jobs, job)
		}
	}
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	return jobs, nil
}

type columns struct {
	url, folder, depth int
}

func jobColumns(header []string) (columns, error) {
	cols := columns{url: -1, folder: -1, depth: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "url", "root_url", "rooturl":
			cols.url = i
		case "folder", "foldername", "folder_name":
			cols.folder = i
		case "depth", "maxdepth", "max_depth":
			cols.depth = i
		}
	}
	if cols.url < 0 {
		return cols, fmt.Errorf("%w: header has no url column", ErrInvalidJobsFile)
	}
	return cols, nil
}

func parseJobRecord(record []string, cols columns) (model.Job, bool, error) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	job := model.Job{
		URL:      field(cols.url),
		Folder:   field(cols.folder),
		MaxDepth: UnsetDepth,
	}
	if job.URL == "" {
		if job.Folder == "" && field(cols.depth) == "" {
			return job, false, nil
		}
		return job, false, errors.New("missing url")
	}
	if d := field(cols.depth); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			return job, false, fmt.Errorf("depth %q is not an integer", d)
		}
		if n < 0 {
			return job, false, fmt.Errorf("%w: %d", ErrInvalidDepth, n)
		}
		job.MaxDepth = n
	}
	return job, true, nil
}
