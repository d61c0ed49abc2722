package driverregistry

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jimyag/sdfgen/pkg/sdferr"
)

// Registry is the process-wide driver manifest index: populated once by
// Probe, read-only afterwards. spec.md §5 allows either a global or a
// passed-through instance provided the probed precondition is enforced;
// this implementation is the latter, for testability.
type Registry struct {
	mu      sync.RWMutex
	byClass map[DeviceClass][]*Manifest
	probed  bool
}

// NewRegistry returns an empty, unprobed Registry.
func NewRegistry() *Registry {
	return &Registry{byClass: make(map[DeviceClass][]*Manifest)}
}

type scanEntry struct {
	class DeviceClass
	dir   string
	name  string
	path  string
}

// Probe scans repoPath/drivers/<class_dir>/<driver_name>/config.json for
// every known class. File reads run concurrently via errgroup; parsing,
// per-manifest validation, and insertion run sequentially afterwards in a
// fixed (class, driver-name) order so FindDriver's documented
// insertion-order tie-break is reproducible regardless of filesystem
// readdir or goroutine scheduling order.
func (r *Registry) Probe(ctx context.Context, repoPath string) error {
	entries, err := discover(repoPath)
	if err != nil {
		return err
	}

	raws := make([][]byte, len(entries))
	g, _ := errgroup.WithContext(ctx)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			b, err := os.ReadFile(e.path)
			if err != nil {
				return sdferr.Wrap(sdferr.KindInvalidConfig, err, "reading %s", e.path)
			}
			raws[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range entries {
		m, err := parseManifest(e.class, e.dir, e.name, raws[i])
		if err != nil {
			return err
		}
		for _, existing := range r.byClass[e.class] {
			if shareCompatible(existing.Compatible, m.Compatible) {
				return sdferr.New(sdferr.KindInvalidConfig, "driver %s/%s: compatible string collides with %s/%s in class %s",
					e.dir, e.name, existing.Dir, existing.Name, e.class)
			}
		}
		r.byClass[e.class] = append(r.byClass[e.class], m)
	}
	r.probed = true
	return nil
}

func shareCompatible(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if set[s] {
			return true
		}
	}
	return false
}

// discover walks the fixed class directories under repoPath/drivers,
// collecting one scanEntry per driver subdirectory that contains a
// config.json, sorted by driver name within each class directory.
func discover(repoPath string) ([]scanEntry, error) {
	var entries []scanEntry
	for _, cd := range classDirs {
		classPath := filepath.Join(repoPath, "drivers", cd.dir)
		dirEntries, err := os.ReadDir(classPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, sdferr.Wrap(sdferr.KindInvalidConfig, err, "reading %s", classPath)
		}

		var names []string
		for _, de := range dirEntries {
			if de.IsDir() {
				names = append(names, de.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			cfgPath := filepath.Join(classPath, name, "config.json")
			if _, err := os.Stat(cfgPath); err != nil {
				continue
			}
			entries = append(entries, scanEntry{class: cd.class, dir: cd.dir, name: name, path: cfgPath})
		}
	}
	return entries, nil
}

// FindDriver performs the documented linear scan: the first driver of
// class that shares any compatible string with compatibles, in registry
// insertion order.
func (r *Registry) FindDriver(compatibles []string, class DeviceClass) (*Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.probed {
		return nil, sdferr.New(sdferr.KindCalledBeforeProbe, "find driver: registry not probed")
	}
	for _, m := range r.byClass[class] {
		if shareCompatible(m.Compatible, compatibles) {
			return m, nil
		}
	}
	return nil, sdferr.New(sdferr.KindUnknownDevice, "no driver of class %s matches %v", class, compatibles)
}

// Manifests returns every probed manifest of class, in insertion order.
func (r *Registry) Manifests(class DeviceClass) ([]*Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.probed {
		return nil, sdferr.New(sdferr.KindCalledBeforeProbe, "manifests: registry not probed")
	}
	return r.byClass[class], nil
}
