package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Options configures the watcher.
type Options struct {
	// SettleDelay is how long a file must stay unchanged before an event is emitted.
	// Editors often write a file in several steps.
	SettleDelay time.Duration
	// IgnorePatterns are filepath.Match patterns applied to the base name.
	IgnorePatterns []string
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = 250 * time.Millisecond
	}
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{"*.swp", "*~", "*.tmp", ".#*"}
	}
}

func (o *Options) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
