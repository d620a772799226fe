// Package policy evaluates inclusion, view-type, and tag policy for
// every page by walking its block tree and invoking the script hook,
// then resolving the final per-block status in a bottom-up pass.
package policy

import (
	"fmt"
	"log/slog"

	"github.com/daverre/graphpress/internal/apperr"
	"github.com/daverre/graphpress/internal/graph"
	"github.com/daverre/graphpress/internal/report"
	"github.com/daverre/graphpress/internal/tags"
)

// Unbounded walks the entire tree when passed as a max depth.
const Unbounded = -1

// Hook is the script hook contract. Implementations run once per page
// and drive the traversal themselves through PageScope.EachBlock. A
// returned error excludes the page; the run continues.
type Hook interface {
	RunPage(p *PageScope) error
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(*PageScope) error

// RunPage calls f.
func (f HookFunc) RunPage(p *PageScope) error { return f(p) }

// Config carries the policy-relevant configuration tables. It is passed
// in explicitly; the evaluator holds no global state.
type Config struct {
	// Autotag maps keywords to tags for the autotag helper.
	Autotag map[string]string
	// NamespaceTags maps title namespace segments to tags. When non-nil,
	// namespace splitting of page titles is enabled.
	NamespaceTags map[string]string
	// OmitTags are subtracted from every final tag set, strictly after
	// all additions.
	OmitTags []string
}

// Status is a block's final, structurally-resolved inclusion state.
type Status int

const (
	// StatusExcluded omits the block and its subtree.
	StatusExcluded Status = iota
	// StatusRendered renders the block's content and its children.
	StatusRendered
	// StatusLifted omits the block's own content and splices its
	// children in its place.
	StatusLifted
	// StatusSolo renders the block's content without its children.
	StatusSolo
)

// Result holds the final per-block statuses for one page. It is
// derived state: the graph records are not mutated after the
// evaluation pass completes.
type Result struct {
	PageID string
	Status map[string]Status
}

// StatusOf returns the resolved status for a block, defaulting to
// StatusExcluded.
func (r *Result) StatusOf(blockID string) Status {
	return r.Status[blockID]
}

// Evaluator applies default policy, runs the script hook, finalizes
// tags, and resolves include values for one page at a time. Pages are
// independent; one evaluator may be shared across workers as long as
// each page is evaluated by exactly one of them.
type Evaluator struct {
	store *graph.Store
	hook  Hook
	cfg   Config
	log   *slog.Logger
	rep   *report.Collector
}

// New returns an evaluator over store using hook.
func New(store *graph.Store, hook Hook, cfg Config, logger *slog.Logger, rep *report.Collector) *Evaluator {
	return &Evaluator{store: store, hook: hook, cfg: cfg, log: logger, rep: rep}
}

// EvaluatePage runs the full policy pass for one page: defaults, the
// script hook, tag finalization (additions strictly before omissions),
// and the bottom-up include resolution. A script failure excludes the
// page and is reported; it is not returned as an error.
func (e *Evaluator) EvaluatePage(pageID string) (*Result, error) {
	page, err := e.store.Page(pageID)
	if err != nil {
		return nil, fmt.Errorf("policy: evaluate: %w", err)
	}

	// Default policy, applied before the script and overridable by it.
	if page.ViewType == graph.ViewInherit {
		page.ViewType = graph.ViewDocument
	}

	res := &Result{PageID: pageID, Status: make(map[string]Status)}

	scope := &PageScope{ev: e, page: page}
	if err := e.hook.RunPage(scope); err != nil {
		page.Include = false
		e.rep.Add(apperr.ErrScriptFailed, pageID, "", err.Error())
		e.log.Warn("script failed, page excluded",
			slog.String("page", pageID),
			slog.String("title", page.Title),
			slog.String("error", err.Error()))
		e.excludeAll(res, page.Roots, make(map[string]bool))
		return res, nil
	}

	e.finalizeTags(page)

	seen := make(map[string]bool)
	for _, rootID := range page.Roots {
		e.resolveInclude(res, page, rootID, false, seen)
	}
	return res, nil
}

// finalizeTags applies namespace-derived tags and then the omit set.
// All additions happen before any removal.
func (e *Evaluator) finalizeTags(page *graph.Page) {
	if e.cfg.NamespaceTags != nil {
		display, matched := tags.SplitNamespace(page.Title, e.cfg.NamespaceTags)
		page.Tags.Add(matched...)
		page.Title = display
	}

	page.Tags.Omit(e.cfg.OmitTags)
	e.walkBlocks(page.Roots, make(map[string]bool), func(b *graph.Block) {
		b.Tags.Omit(e.cfg.OmitTags)
	})
}

func (e *Evaluator) walkBlocks(ids []string, seen map[string]bool, fn func(*graph.Block)) {
	for _, id := range ids {
		b, err := e.store.Block(id)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		fn(b)
		e.walkBlocks(b.Children, seen, fn)
	}
}

// resolveInclude is the bottom-up pass. An unset include resolves to
// inclusion when an explicitly-including ancestor exists (inherited),
// and to exclusion otherwise.
func (e *Evaluator) resolveInclude(res *Result, page *graph.Page, id string, inherited bool, seen map[string]bool) Status {
	b, err := e.store.Block(id)
	if err != nil || seen[id] {
		// Missing or revisited: report, exclude this path, and leave any
		// status from the first legitimate visit untouched.
		e.rep.Add(apperr.ErrMalformedBlock, page.ID, id, "unresolvable or revisited block")
		e.log.Warn("malformed block excluded",
			slog.String("page", page.ID), slog.String("block", id))
		if _, ok := res.Status[id]; !ok {
			res.Status[id] = StatusExcluded
		}
		return StatusExcluded
	}
	seen[id] = true

	inc := b.Include
	if inc == graph.IncludeUnset {
		if inherited {
			inc = graph.IncludeYes
		} else {
			inc = graph.IncludeExclude
		}
	}

	var st Status
	switch inc {
	case graph.IncludeExclude:
		e.excludeAll(res, b.Children, seen)
		st = StatusExcluded
	case graph.IncludeYes:
		for _, c := range b.Children {
			e.resolveInclude(res, page, c, true, seen)
		}
		st = StatusRendered
	case graph.IncludeJustBlock:
		e.excludeAll(res, b.Children, seen)
		st = StatusSolo
	case graph.IncludeOnlyChildren:
		for _, c := range b.Children {
			e.resolveInclude(res, page, c, true, seen)
		}
		st = StatusLifted
	case graph.IncludeIfChildrenPresent:
		any := false
		for _, c := range b.Children {
			if e.resolveInclude(res, page, c, true, seen) != StatusExcluded {
				any = true
			}
		}
		if any {
			st = StatusRendered
		} else {
			st = StatusExcluded
		}
	}

	res.Status[id] = st
	return st
}

func (e *Evaluator) excludeAll(res *Result, ids []string, seen map[string]bool) {
	for _, id := range ids {
		b, err := e.store.Block(id)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		res.Status[id] = StatusExcluded
		e.excludeAll(res, b.Children, seen)
	}
}
