/*
PURPOSE:
  Writes JSON artifacts: JSON Lines streams (resource samples) and single
  indented documents (run aggregates, statistics, comparison reports).

REQUIREMENTS:
  User-specified:
  - The aggregate and the report must be regenerable byte-identically.

  Implementation-discovered:
  - JSON Lines is better for streaming samplers (append-friendly).
  - Single documents are written to a temp file and renamed so a crash
    never leaves a half-written aggregate behind.

ARCHITECTURE INTEGRATION:
  - Called by: internal/aggregate, internal/sampler, internal/render

ERROR HANDLING:
  - Returns error on file creation, encode or rename failure.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder.
  - JSONWriter is thread-safe.
  - No HTML escaping; trailing newline on documents.

USAGE:
  w, err := output.NewJSONWriter("resource_samples.jsonl")
  w.Write(sample)
  w.Close()

  err := output.WriteJSONFile("run_aggregate.json", agg)

SELF-HEALING INSTRUCTIONS:
  - None specific.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - None.
*/

package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONWriter handles writing values to a JSON Lines file.
type JSONWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter creates a new JSONWriter.
func NewJSONWriter(path string) (*JSONWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &JSONWriter{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Write writes a single value as a JSON line.
func (jw *JSONWriter) Write(v any) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	return jw.encoder.Encode(v)
}

// Close closes the underlying file.
func (jw *JSONWriter) Close() error {
	return jw.file.Close()
}

// MarshalDocument renders v as indented JSON with a trailing newline.
func MarshalDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSONFile atomically replaces path with the indented JSON of v.
func WriteJSONFile(path string, v any) error {
	data, err := MarshalDocument(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
