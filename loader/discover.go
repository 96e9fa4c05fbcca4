package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/go-lynx/widget/plugins"
)

type parsed struct {
	manifest *plugins.Manifest
	err      error
}

// Discover installs every manifest file under dir. Files are parsed in parallel
// on a worker pool, then loaded and registered in path order, so of two files
// declaring one id the first path wins. Hidden directories are skipped.
// It returns the installed manifests and the joined per-file failures.
func (ld *Loader) Discover(ctx context.Context, dir string) ([]*plugins.Manifest, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := FormatOf(p); ok {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover plugins in %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(ld.workers,
		ants.WithNonblocking(false),
		ants.WithPanicHandler(func(p any) {
			ld.log.Errorf("panic while parsing plugin manifest: %v", p)
		}))
	if err != nil {
		return nil, fmt.Errorf("discover plugins: worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]parsed, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return
			}
			// survives only if read panics
			results[i].err = errors.New("manifest parser panicked")
			m, err := ld.read(p)
			results[i] = parsed{manifest: m, err: err}
		})
		if submitErr != nil {
			wg.Done()
			results[i].err = submitErr
		}
	}
	wg.Wait()

	var (
		installed []*plugins.Manifest
		errs      []error
	)
	for i, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", paths[i], r.err))
			continue
		}
		m, err := ld.remember(paths[i], r.manifest)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", paths[i], err))
			continue
		}
		if err := ld.registrar.Register(m); err != nil {
			ld.UnloadPlugin(m.ID)
			errs = append(errs, fmt.Errorf("%s: %w", paths[i], err))
			continue
		}
		installed = append(installed, m)
	}
	ld.log.Infof("plugin discovery finished: dir=%s installed=%d failed=%d", dir, len(installed), len(errs))
	return installed, errors.Join(errs...)
}
