// Package backup snapshots the project configuration files the commit phase
// is about to replace, and restores or prunes those snapshots.
package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Snapshot represents a single backup of project configuration files.
type Snapshot struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Note       string    `json:"note,omitempty"`
	ProjectDir string    `json:"project_dir"`
	Files      []string  `json:"files"` // paths relative to the project dir
}

// Info summarizes a snapshot for listing.
type Info struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Note      string    `json:"note,omitempty"`
	Files     int       `json:"files"`
}

// Manager handles snapshot operations under a backup directory.
type Manager struct {
	backupDir string
}

// NewManager creates a manager under $XDG_CACHE_HOME/clasp/backups.
func NewManager() (*Manager, error) {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return &Manager{backupDir: filepath.Join(cacheDir, "clasp", "backups")}, nil
}

// NewManagerWithDir creates a manager with a custom directory (for testing).
func NewManagerWithDir(dir string) *Manager {
	return &Manager{backupDir: dir}
}

// Create copies the given project-relative files that currently exist into a
// new timestamped snapshot. Files that do not exist are skipped, not errors.
func (m *Manager) Create(projectDir string, relFiles []string, note string) (*Snapshot, error) {
	id := time.Now().UTC().Format("20060102-150405.000000")
	dir := filepath.Join(m.backupDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	snap := &Snapshot{
		ID:         id,
		CreatedAt:  time.Now().UTC(),
		Note:       note,
		ProjectDir: projectDir,
	}
	for _, rel := range relFiles {
		src := filepath.Join(projectDir, rel)
		info, err := os.Lstat(src)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		dst := filepath.Join(dir, filepath.FromSlash(rel))
		if err := copyFile(src, dst, info.Mode().Perm()); err != nil {
			return nil, fmt.Errorf("failed to back up %s: %w", rel, err)
		}
		snap.Files = append(snap.Files, rel)
	}

	manifest, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), manifest, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write backup manifest: %w", err)
	}
	return snap, nil
}

// List returns snapshot summaries, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(m.backupDir, e.Name(), "manifest.json"))
		if err != nil {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(content, &snap); err != nil {
			continue
		}
		infos = append(infos, Info{
			ID:        snap.ID,
			CreatedAt: snap.CreatedAt,
			Note:      snap.Note,
			Files:     len(snap.Files),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.After(infos[j].CreatedAt) })
	return infos, nil
}

// Restore copies a snapshot's files back into a project directory and
// returns the project-relative paths restored.
func (m *Manager) Restore(id, projectDir string) ([]string, error) {
	if id == "" || filepath.Base(id) != id {
		return nil, fmt.Errorf("invalid backup ID: %q", id)
	}
	dir := filepath.Join(m.backupDir, id)
	content, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("backup %s not found: %w", id, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return nil, fmt.Errorf("backup %s has a corrupt manifest: %w", id, err)
	}

	var restored []string
	for _, rel := range snap.Files {
		src := filepath.Join(dir, filepath.FromSlash(rel))
		info, err := os.Lstat(src)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		dst := filepath.Join(projectDir, filepath.FromSlash(rel))
		if err := copyFile(src, dst, info.Mode().Perm()); err != nil {
			return restored, fmt.Errorf("failed to restore %s: %w", rel, err)
		}
		restored = append(restored, rel)
	}
	return restored, nil
}

// Delete removes a snapshot by ID.
func (m *Manager) Delete(id string) error {
	if id == "" || filepath.Base(id) != id {
		return fmt.Errorf("invalid backup ID: %q", id)
	}
	return os.RemoveAll(filepath.Join(m.backupDir, id))
}

func copyFile(src, dst string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
