package ingest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
)

// Input formats
const (
	FormatAuto  = "auto"
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// maxLineBytes bounds one JSON line
const maxLineBytes = 1 << 20

// Detection is one input record
type Detection struct {
	CameraID  string    `json:"camera_id"`
	Class     string    `json:"class"`
	Timestamp time.Time `json:"timestamp"`
}

// resolveFormat picks a format from the file extension when format is auto.
func resolveFormat(format, path string) (string, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSONL, "json", "ndjson":
		return FormatJSONL, nil
	case "", FormatAuto:
	default:
		return "", errors.Newf("unsupported input format %q", format).
			Component("ingest").
			Category(errors.CategoryValidation).
			Build()
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL, nil
	default:
		return FormatCSV, nil
	}
}

// readDetections streams records from r to fn in input order. line is the
// 1-based line (CSV: record) number, used in error messages.
func readDetections(r io.Reader, format string, fn func(line int, d Detection) error) error {
	switch format {
	case FormatJSONL:
		return readJSONL(r, fn)
	default:
		return readCSV(r, fn)
	}
}

// readCSV reads camera_id,class,timestamp records. A leading header row is skipped.
func readCSV(r io.Reader, fn func(line int, d Detection) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return parseError(line, err)
		}
		if line == 1 && strings.EqualFold(record[0], "camera_id") {
			continue
		}

		ts, err := parseTimestamp(record[2])
		if err != nil {
			return parseError(line, err)
		}
		if err := fn(line, Detection{CameraID: record[0], Class: record[1], Timestamp: ts}); err != nil {
			return err
		}
	}
}

// readJSONL reads one JSON object per line. Blank lines are skipped.
func readJSONL(r io.Reader, fn func(line int, d Detection) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var d Detection
		if err := json.Unmarshal([]byte(text), &d); err != nil {
			return parseError(line, err)
		}
		if err := fn(line, d); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return parseError(line+1, err)
	}
	return nil
}

// parseTimestamp accepts RFC 3339 timestamps, keeping their offset.
func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: expected RFC 3339", value)
	}
	return ts, nil
}

func parseError(line int, err error) error {
	return errors.New(fmt.Errorf("line %d: %w", line, err)).
		Component("ingest").
		Category(errors.CategoryFileParsing).
		Context("line", line).
		Build()
}
