package toolkit

import (
	"os"
	"sync"

	"github.com/BurntSushi/toml"
)

// PolicyFile is the on-disk shape of the tool confirmation configuration
// file described in spec §6: a single [tools] table mapping tool name to
// a boolean. Unlisted tools default to true (fail-safe).
type PolicyFile struct {
	Tools map[string]bool `toml:"tools"`
}

// ConfirmationPolicy resolves whether a tool requires confirmation,
// re-reading its backing file on every lookup so edits take effect live
// without a restart.
type ConfirmationPolicy struct {
	path string

	mu       sync.Mutex
	lastGood map[string]bool
}

// NewConfirmationPolicy returns a policy backed by the TOML file at path.
// An empty path disables file-backed overrides entirely (every tool falls
// back to its own RequiresConfirmation default).
func NewConfirmationPolicy(path string) *ConfirmationPolicy {
	return &ConfirmationPolicy{path: path, lastGood: map[string]bool{}}
}

// Resolve returns the effective confirmation requirement for toolName,
// given the tool's own declared default. A malformed or missing config
// file is treated as empty, never fatal.
func (p *ConfirmationPolicy) Resolve(toolName string, defaultValue bool) bool {
	if p == nil || p.path == "" {
		return defaultValue
	}

	overrides := p.load()
	if v, ok := overrides[toolName]; ok {
		return v
	}
	return defaultValue
}

func (p *ConfirmationPolicy) load() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		// Missing file: fail-safe empty, not fatal.
		return map[string]bool{}
	}

	var file PolicyFile
	if err := toml.Unmarshal(data, &file); err != nil {
		// Malformed file: treated as empty, not fatal.
		return map[string]bool{}
	}

	if file.Tools == nil {
		file.Tools = map[string]bool{}
	}
	p.lastGood = file.Tools
	return file.Tools
}
