package lineage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ParseSnapshot decodes a nested JSON snapshot into a validated Tree.
// A JSON null document yields ErrEmptyTree; structural defects yield a
// *MalformedTreeError identifying the offending path.
func ParseSnapshot(data []byte) (*Tree, error) {
	var root *Record
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return FromRecord(root)
}

// ReadSnapshot decodes a JSON snapshot from an io.Reader into a Tree.
// Use ReadSnapshotFile for files or pass bytes.NewReader for in-memory data.
func ReadSnapshot(r io.Reader) (*Tree, error) {
	var root *Record
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return FromRecord(root)
}

// ReadSnapshotFile reads a JSON snapshot file and returns the decoded Tree.
func ReadSnapshotFile(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	t, err := ReadSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	return t, nil
}

// MarshalSnapshot converts a Tree to indented JSON bytes.
func MarshalSnapshot(t *Tree) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteSnapshot(t, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSnapshot writes a Tree as indented JSON to an io.Writer.
func WriteSnapshot(t *Tree, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t.ToRecord()); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// WriteSnapshotFile writes a Tree to a JSON file with 0644 permissions.
func WriteSnapshotFile(t *Tree, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteSnapshot(t, f)
}
