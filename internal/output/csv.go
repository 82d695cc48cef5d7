/*
PURPOSE:
  Writes tabular report outputs (long-form statistics, per-run index)
  to CSV files.

REQUIREMENTS:
  User-specified:
  - Output to CSV for spreadsheet/pandas consumers.

  Implementation-discovered:
  - Report files are regenerated on each compare, so truncate on open.

ARCHITECTURE INTEGRATION:
  - Called by: internal/render

ERROR HANDLING:
  - Returns error on file creation or write failure.
  - Rejects records whose width differs from the header.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Use Mutex; render may write from several goroutines.

USAGE:
  w, err := output.NewCSVWriter("statistics_summary.csv", header)
  w.Write(record)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - If a CSV layout changes, update the header and the record builder
    in internal/render together.

RELATED FILES:
  - internal/render/csv.go

MAINTENANCE:
  - None.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
)

// CSVWriter handles writing records to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	width  int
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter and writes the header.
// It overwrites the file if it exists.
func NewCSVWriter(path string, header []string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
		width:  len(header),
	}, nil
}

// Write writes a single record to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(record []string) error {
	if len(record) != cw.width {
		return fmt.Errorf("record has %d fields, header has %d", len(record), cw.width)
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}

// FormatFloat renders v with the given precision; nil renders as "NA".
func FormatFloat(v *float64, prec int) string {
	if v == nil {
		return "NA"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
