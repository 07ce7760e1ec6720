package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/kintree/pkg/layout"
	"github.com/matzehuels/kintree/pkg/lineage"
)

// FileStore keeps snapshots as JSON files in a config directory.
// Trees are stored as <name>.json, position sets as pos/<treehash>.json.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file-backed store.
// If baseDir is empty, defaults to ~/.config/kintree/snapshots/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		baseDir = filepath.Join(home, ".config", "kintree", "snapshots")
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "pos"), 0700); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) treePath(name string) string {
	return filepath.Join(s.baseDir, name+".json")
}

func (s *FileStore) posPath(treeHash string) string {
	return filepath.Join(s.baseDir, "pos", treeHash+".json")
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid snapshot name %q", name)
	}
	return nil
}

func (s *FileStore) SaveTree(ctx context.Context, name string, t *lineage.Tree) error {
	if err := validName(name); err != nil {
		return err
	}
	if t == nil || t.Len() == 0 {
		return lineage.ErrEmptyTree
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return lineage.WriteSnapshotFile(t, s.treePath(name))
}

func (s *FileStore) LoadTree(ctx context.Context, name string) (*lineage.Tree, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := lineage.ReadSnapshotFile(s.treePath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("tree %q: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return t, nil
}

func (s *FileStore) DeleteTree(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := lineage.ReadSnapshotFile(s.treePath(name))
	if err == nil {
		// Best effort: drop the positions bound to this revision too.
		os.Remove(s.posPath(t.Hash()))
	}
	if err := os.Remove(s.treePath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove tree file: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirents, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var entries []Entry
	for _, de := range dirents {
		if de.IsDir() || filepath.Ext(de.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(de.Name(), ".json")
		t, err := lineage.ReadSnapshotFile(filepath.Join(s.baseDir, de.Name()))
		if err != nil {
			continue
		}
		info, _ := de.Info()
		savedAt := time.Time{}
		if info != nil {
			savedAt = info.ModTime()
		}
		hash := t.Hash()
		_, posErr := os.Stat(s.posPath(hash))
		entries = append(entries, Entry{
			Name:      name,
			TreeHash:  hash,
			Persons:   t.Len(),
			SavedAt:   savedAt,
			Positions: posErr == nil,
		})
	}
	return entries, nil
}

func (s *FileStore) SavePositions(ctx context.Context, treeHash string, ov layout.Overrides) error {
	if treeHash == "" {
		return fmt.Errorf("empty tree hash")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ov.Len() == 0 {
		if err := os.Remove(s.posPath(treeHash)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove positions file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(newPositions(treeHash, ov), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}
	if err := os.WriteFile(s.posPath(treeHash), data, 0600); err != nil {
		return fmt.Errorf("write positions file: %w", err)
	}
	return nil
}

func (s *FileStore) LoadPositions(ctx context.Context, treeHash string) (layout.Overrides, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.posPath(treeHash))
	if err != nil {
		if os.IsNotExist(err) {
			return layout.Overrides{}, nil
		}
		return nil, fmt.Errorf("read positions file: %w", err)
	}

	var p Positions
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse positions: %w", err)
	}
	return p.overrides(), nil
}

func (s *FileStore) Close(ctx context.Context) error { return nil }

// Path returns the base directory for snapshot files.
func (s *FileStore) Path() string {
	return s.baseDir
}

var _ Store = (*FileStore)(nil)
