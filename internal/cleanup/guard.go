// Package cleanup releases the files a request staged, on every exit path.
package cleanup

import (
	"errors"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/aldr4GO/celebtwin/internal/metrics"
)

// Guard tracks staged files for one request and removes them on Release.
// Removal failures are logged and counted, never returned: they must not
// replace the result the pipeline already produced.
type Guard struct {
	mu       sync.Mutex
	paths    []string
	released bool
	logger   *zap.Logger
	remove   func(string) error
}

// NewGuard creates an empty guard.
func NewGuard(logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{logger: logger, remove: os.Remove}
}

// Track registers path for removal. Paths tracked after Release are removed
// immediately.
func (g *Guard) Track(path string) {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		g.removeOne(path)
		return
	}
	g.paths = append(g.paths, path)
	g.mu.Unlock()
}

// Tracked returns a copy of the paths still awaiting removal.
func (g *Guard) Tracked() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.paths...)
}

// Release removes every tracked path once. It returns the number of paths
// that could not be removed. Calling Release again is a no-op.
func (g *Guard) Release() int {
	g.mu.Lock()
	paths := g.paths
	g.paths = nil
	g.released = true
	g.mu.Unlock()

	failed := 0
	for _, p := range paths {
		if !g.removeOne(p) {
			failed++
		}
	}
	return failed
}

func (g *Guard) removeOne(path string) bool {
	err := g.remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	metrics.CleanupFailuresTotal.Inc()
	g.logger.Warn("Failed to remove staged file",
		zap.String("path", path),
		zap.Error(err),
	)
	return false
}
