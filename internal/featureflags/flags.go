package featureflags

import (
	"os"
	"strings"
)

// Known flags
const (
	// SemanticPrioritySort orders priority sorts HIGH > MEDIUM > LOW instead of by creation time.
	SemanticPrioritySort = "semantic_priority_sort"
)

// Flags resolves flags from the environment first, then from configured defaults
type Flags struct {
	defaults map[string]bool
}

// New creates a flag set with defaults, typically from the config file
func New(defaults map[string]bool) *Flags {
	d := make(map[string]bool, len(defaults))
	for k, v := range defaults {
		d[strings.ToLower(k)] = v
	}
	return &Flags{defaults: d}
}

// Enabled reports whether name is on. A nil *Flags falls back to the environment only.
func (f *Flags) Enabled(name string) bool {
	if on, set := fromEnv(name); set {
		return on
	}
	if f == nil {
		return false
	}
	return f.defaults[strings.ToLower(name)]
}

// fromEnv reads FLAG_<NAME>=true/1/yes/on (case-insensitive)
func fromEnv(name string) (on, set bool) {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	if v == "" {
		return false, false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, true
	default:
		return false, true
	}
}
