package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/davidbz/tokenledger/internal/domain"
)

const filePerm = 0o644

// Encoding selects the document format of a file snapshot.
type Encoding string

const (
	// EncodingJSON writes indented JSON.
	EncodingJSON Encoding = "json"

	// EncodingYAML writes YAML.
	EncodingYAML Encoding = "yaml"
)

// EncodingFor picks the encoding from the file extension; JSON unless the
// path ends in .yaml or .yml.
func EncodingFor(path string) Encoding {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return EncodingYAML
	default:
		return EncodingJSON
	}
}

// FileWriter writes snapshots as JSON or YAML documents.
type FileWriter struct {
	encoding Encoding
}

// NewFileWriter creates a file writer for the given encoding.
func NewFileWriter(encoding Encoding) *FileWriter {
	return &FileWriter{encoding: encoding}
}

// Write encodes the snapshot and atomically replaces path with it.
func (w *FileWriter) Write(ctx context.Context, path string, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(w.encoding, snapshot)
	if err != nil {
		return err
	}

	return replaceFile(path, func(f *os.File) error {
		_, writeErr := f.Write(data)
		return writeErr
	})
}

// Encode renders a snapshot in the given encoding.
func Encode(encoding Encoding, snapshot domain.Snapshot) ([]byte, error) {
	switch encoding {
	case EncodingYAML:
		data, err := yaml.Marshal(snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to encode yaml snapshot: %w", err)
		}
		return data, nil
	case EncodingJSON:
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json snapshot: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot encoding: %s", encoding)
	}
}

// ReadFile decodes a JSON or YAML snapshot, chosen by extension.
func ReadFile(path string) (domain.Snapshot, error) {
	var snapshot domain.Snapshot

	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot, fmt.Errorf("failed to read snapshot %q: %w", path, err)
	}

	if EncodingFor(path) == EncodingYAML {
		err = yaml.Unmarshal(data, &snapshot)
	} else {
		err = json.Unmarshal(data, &snapshot)
	}
	if err != nil {
		return snapshot, fmt.Errorf("failed to decode snapshot %q: %w", path, err)
	}

	return snapshot, nil
}

// replaceFile writes through fill into a temporary sibling of path and
// renames it over path once fully written and synced.
func replaceFile(path string, fill func(*os.File) error) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		return fmt.Errorf("failed to chmod snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %q: %w", path, err)
	}

	committed = true
	return nil
}
