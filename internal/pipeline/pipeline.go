// Package pipeline wires the two-phase export run: every page is
// policy-evaluated first, then, strictly after that barrier,
// cross-page resolution, rendering, cache decisions, and output
// writing proceed per page on a worker pool.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/daverre/graphpress/internal/cache"
	"github.com/daverre/graphpress/internal/graph"
	"github.com/daverre/graphpress/internal/policy"
	"github.com/daverre/graphpress/internal/render"
	"github.com/daverre/graphpress/internal/report"
	"github.com/daverre/graphpress/internal/resolve"
)

// Config holds the pipeline's run parameters.
type Config struct {
	OutputDir     string
	Extension     string
	Workers       int
	MaxEmbedDepth int
}

// Stats summarizes one run.
type Stats struct {
	Pages    int
	Included int
	Wrote    int
	Skipped  int
	Warnings int
}

// Pipeline runs one full export over a populated store.
type Pipeline struct {
	store    *graph.Store
	ev       *policy.Evaluator
	cache    *cache.Store
	renderer *render.HTML
	rep      *report.Collector
	log      *slog.Logger
	cfg      Config
}

// New assembles a pipeline. The cache store must already be open; an
// unreachable cache is fatal and surfaces from Run.
func New(store *graph.Store, ev *policy.Evaluator, cacheStore *cache.Store, renderer *render.HTML, cfg Config, logger *slog.Logger, rep *report.Collector) *Pipeline {
	if cfg.Extension == "" {
		cfg.Extension = "html"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Pipeline{store: store, ev: ev, cache: cacheStore, renderer: renderer, cfg: cfg, log: logger, rep: rep}
}

// Run executes both phases and writes changed output files plus the
// manifest. Recovered issues accumulate in the report collector; only
// fatal conditions (cache outage, filesystem failure) return an error.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	p.store.BuildBackrefs()
	pages := p.store.Pages()

	var stats Stats
	stats.Pages = len(pages)

	// Phase 1: fix every page's own inclusion/tag/view-type state.
	results := make(map[string]*policy.Result, len(pages))
	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, page := range pages {
		page := page
		g.Go(func() error {
			res, err := p.ev.EvaluatePage(page.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			results[page.ID] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("pipeline: policy phase: %w", err)
	}

	// Phase 2: cross-page resolution and output. Safe only because
	// phase 1 has completed for all pages.
	resolver := resolve.New(p.store, results, p.cfg.MaxEmbedDepth, p.log, p.rep)
	manifest := make(map[string]string)

	g2, _ := errgroup.WithContext(ctx)
	g2.SetLimit(p.cfg.Workers)
	for _, page := range pages {
		page := page
		if !page.Include {
			continue
		}
		stats.Included++
		g2.Go(func() error {
			node, err := resolver.ResolvePage(page.ID)
			if err != nil {
				return err
			}
			out := p.renderer.RenderPage(page, node)
			rel := outputName(page, p.cfg.Extension)

			decision, err := p.cache.Decide(rel, out)
			if err != nil {
				return err
			}

			mu.Lock()
			manifest[rel] = page.Title
			if decision == cache.Write {
				stats.Wrote++
			} else {
				stats.Skipped++
			}
			mu.Unlock()

			if decision == cache.Skip {
				p.log.Debug("up to date", slog.String("file", rel))
				return nil
			}
			if err := writeFile(filepath.Join(p.cfg.OutputDir, rel), out); err != nil {
				return err
			}
			p.log.Info("wrote page",
				slog.String("title", page.Title),
				slog.String("file", rel))
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return stats, fmt.Errorf("pipeline: resolve phase: %w", err)
	}

	if err := p.writeManifest(manifest); err != nil {
		return stats, err
	}

	stats.Warnings = p.rep.Total()
	p.rep.Log(p.log)
	return stats, nil
}

// writeManifest persists the filename -> title map. It goes through
// the cache too, so an unchanged manifest leaves its mtime alone.
func (p *Pipeline) writeManifest(manifest map[string]string) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: marshal manifest: %w", err)
	}
	data = append(data, '\n')

	decision, err := p.cache.Decide("manifest.json", data)
	if err != nil {
		return err
	}
	if decision == cache.Skip {
		return nil
	}
	return writeFile(filepath.Join(p.cfg.OutputDir, "manifest.json"), data)
}

// outputName returns the page's output path relative to the output
// directory: the script-set path name, or a slug derived from the
// title.
func outputName(page *graph.Page, ext string) string {
	name := page.PathName
	if name == "" {
		name = Slug(page.Title) + "." + ext
	}
	if page.PathBase != "" {
		return filepath.Join(page.PathBase, name)
	}
	return name
}

// Slug derives the default output filename stem from a title:
// lowercase alphanumeric words joined by underscores.
func Slug(title string) string {
	words := strings.FieldsFunc(title, func(r rune) bool {
		return unicode.IsSpace(r) || r == '/' || r == '-' || r == ':'
	})
	var out []string
	for _, w := range words {
		var b strings.Builder
		for _, r := range w {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToLower(r))
			}
		}
		if b.Len() > 0 {
			out = append(out, b.String())
		}
	}
	return strings.Join(out, "_")
}

// writeFile atomically writes content: tmp file, fsync, rename.
func writeFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pipeline: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".graphpress-tmp-*")
	if err != nil {
		return fmt.Errorf("pipeline: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("pipeline: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("pipeline: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("pipeline: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("pipeline: rename: %w", err)
	}
	success = true
	return nil
}
