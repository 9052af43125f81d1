// Package scratch implements the sandboxed scratch filesystem: path
// resolution that rejects traversal outside a configured root, filename
// sanitization, and per-file/tree size quotas.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxFileSize is the largest a single scratch file may be.
const MaxFileSize = 50 * 1024 * 1024

// MaxTreeSize is the largest the whole scratch root may grow to.
const MaxTreeSize = 500 * 1024 * 1024

// maxFilenameLength caps a sanitized filename's length.
const maxFilenameLength = 255

// Space sandboxes a root directory: every path it resolves is guaranteed
// to be a descendant of Root, and writes are rejected once either quota
// would be exceeded.
type Space struct {
	Root string
}

// New constructs a Space rooted at root, creating the directory if absent.
func New(root string) (*Space, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("scratch: root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("scratch: create root: %w", err)
	}
	return &Space{Root: root}, nil
}

// Resolve returns an absolute path within the scratch root for name,
// rejecting traversal. name is sanitized before joining so the caller never
// needs to pre-clean untrusted filenames.
func (s *Space) Resolve(name string) (string, error) {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return "", fmt.Errorf("scratch: filename is required")
	}
	for _, part := range strings.Split(filepath.ToSlash(clean), "/") {
		if part == ".." {
			return "", fmt.Errorf("scratch: path escapes root")
		}
	}

	rootAbs, err := filepath.Abs(s.Root)
	if err != nil {
		return "", fmt.Errorf("scratch: resolve root: %w", err)
	}

	sanitized := SanitizeFilename(clean)
	target := filepath.Join(rootAbs, sanitized)
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("scratch: resolve path: %w", err)
	}

	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("scratch: resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("scratch: path escapes root")
	}

	return targetAbs, nil
}

// Write resolves name within the root and writes data, enforcing the
// per-file and whole-tree size quotas before touching disk.
func (s *Space) Write(name string, data []byte) error {
	if len(data) > MaxFileSize {
		return fmt.Errorf("scratch: file exceeds max size of %d bytes", MaxFileSize)
	}

	path, err := s.Resolve(name)
	if err != nil {
		return err
	}

	existing := int64(0)
	if info, err := os.Stat(path); err == nil {
		existing = info.Size()
	}

	treeSize, err := s.treeSize()
	if err != nil {
		return fmt.Errorf("scratch: measure tree size: %w", err)
	}
	if treeSize-existing+int64(len(data)) > MaxTreeSize {
		return fmt.Errorf("scratch: write would exceed tree quota of %d bytes", MaxTreeSize)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("scratch: create parent directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Read resolves name within the root and returns its contents.
func (s *Space) Read(name string) ([]byte, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// FileInfo describes one regular file in the scratch root for list_files.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
	AgeHrs  float64
}

// List returns every regular file directly in the scratch root (no
// recursion into subdirectories), with name, size, modification time, and
// age in hours, per the list_files contract.
func (s *Space) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scratch: list root: %w", err)
	}

	now := time.Now()
	out := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("scratch: stat %s: %w", entry.Name(), err)
		}
		out = append(out, FileInfo{
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			AgeHrs:  now.Sub(info.ModTime()).Hours(),
		})
	}
	return out, nil
}

func (s *Space) treeSize() (int64, error) {
	var total int64
	err := filepath.Walk(s.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// SanitizeFilename replaces unsafe characters, strips leading dots, and
// caps length at 255 so a model-supplied name can never smuggle a
// traversal sequence or an unusable filename past Resolve.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "scratch"
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > maxFilenameLength {
		out = out[:maxFilenameLength]
	}
	return out
}
