package policy

import (
	"fmt"
	"strings"

	"github.com/daverre/graphpress/internal/apperr"
	"github.com/daverre/graphpress/internal/graph"
	"github.com/daverre/graphpress/internal/tags"
)

// Visitor is called once per visited node, pre-order, before the node's
// children. A returned error aborts the traversal and is surfaced as a
// script failure for the page.
type Visitor func(b *BlockScope, depth int) error

// PageScope is the mutable facade handed to the script hook for one
// page. It is a thin adapter over the owned page record; it exposes
// exactly the controlled mutation surface and nothing else.
type PageScope struct {
	ev   *Evaluator
	page *graph.Page
}

// IsJournal reports whether this page is a journal entry.
func (p *PageScope) IsJournal() bool { return p.page.IsJournal }

// Title returns the page title.
func (p *PageScope) Title() string { return p.page.Title }

// SetTitle rewrites the page's display title.
func (p *PageScope) SetTitle(t string) { p.page.Title = t }

// TitleSegments splits the title on the namespace separator.
func (p *PageScope) TitleSegments() []string {
	return strings.Split(p.page.Title, tags.NamespaceSeparator)
}

// PopTitleSegment removes the last namespace segment from the title and
// returns it. A title without a separator is returned whole and left
// unchanged.
func (p *PageScope) PopTitleSegment() string {
	segs := p.TitleSegments()
	if len(segs) < 2 {
		return p.page.Title
	}
	last := segs[len(segs)-1]
	p.page.Title = strings.Join(segs[:len(segs)-1], tags.NamespaceSeparator)
	return last
}

// URLBase returns the base URL used when linking to this page.
func (p *PageScope) URLBase() string { return p.page.URLBase }

// SetURLBase sets the base URL for this page.
func (p *PageScope) SetURLBase(v string) { p.page.URLBase = v }

// PathBase returns the base output folder for this page.
func (p *PageScope) PathBase() string { return p.page.PathBase }

// SetPathBase sets the base output folder for this page.
func (p *PageScope) SetPathBase(v string) { p.page.PathBase = v }

// PathName returns the output filename override, or "" for the default
// slug-derived name.
func (p *PageScope) PathName() string { return p.page.PathName }

// SetPathName overrides the output filename. May include directories.
func (p *PageScope) SetPathName(v string) { p.page.PathName = v }

// Include reports whether the page is opted in for rendering.
func (p *PageScope) Include() bool { return p.page.Include }

// SetInclude opts the page in or out. Pages default to excluded.
func (p *PageScope) SetInclude(v bool) { p.page.Include = v }

// AllowEmbedding returns the page's embedding policy.
func (p *PageScope) AllowEmbedding() graph.AllowEmbed { return p.page.AllowEmbed }

// SetAllowEmbedding sets the page's embedding policy.
func (p *PageScope) SetAllowEmbedding(v graph.AllowEmbed) { p.page.AllowEmbed = v }

// AddTags unions tags into the page's tag set.
func (p *PageScope) AddTags(names ...string) { p.page.Tags.Add(names...) }

// RemoveTag removes a tag from the page's tag set. No-op if absent.
func (p *PageScope) RemoveTag(name string) { p.page.Tags.Remove(name) }

// Tags returns a snapshot of the page's tags.
func (p *PageScope) Tags() []string { return p.page.Tags.Slice() }

// AttrFirst returns the first value of a page attribute, or "".
func (p *PageScope) AttrFirst(name string) string { return p.page.AttrFirst(name) }

// Attr returns all values of a page attribute.
func (p *PageScope) Attr(name string) []string { return p.page.Attrs[name] }

// Autotag scans the named block's text against mapping and returns the
// matched tags. It does not mutate anything.
func (p *PageScope) Autotag(mapping map[string]string, blockID string) ([]string, error) {
	b, err := p.ev.store.Block(blockID)
	if err != nil {
		return nil, err
	}
	return tags.Autotag(mapping, b.Content), nil
}

// ConfiguredAutotag returns the autotag mapping from configuration.
func (p *PageScope) ConfiguredAutotag() map[string]string { return p.ev.cfg.Autotag }

// EachBlock walks the page's block tree depth-first, pre-order,
// starting at a synthetic depth-0 root that represents the page
// itself. maxDepth 0 visits only the root; Unbounded walks the whole
// tree. visit is called exactly once per visited node, before its
// children.
func (p *PageScope) EachBlock(maxDepth int, visit Visitor) error {
	root := &BlockScope{page: p.page, synthetic: true}
	if err := visit(root, 0); err != nil {
		return err
	}
	if maxDepth == 0 {
		return nil
	}
	seen := make(map[string]bool)
	return p.walk(p.page.Roots, 1, maxDepth, seen, visit)
}

func (p *PageScope) walk(ids []string, depth, maxDepth int, seen map[string]bool, visit Visitor) error {
	for _, id := range ids {
		b, err := p.ev.store.Block(id)
		if err != nil || seen[id] {
			p.ev.rep.Add(apperr.ErrMalformedBlock, p.page.ID, id, "skipped during traversal")
			continue
		}
		seen[id] = true
		if err := visit(&BlockScope{block: b, page: p.page}, depth); err != nil {
			return fmt.Errorf("block %s: %w", id, err)
		}
		if maxDepth == Unbounded || depth+1 <= maxDepth {
			if err := p.walk(b.Children, depth+1, maxDepth, seen, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// BlockScope is the mutable facade for one visited node. The synthetic
// depth-0 root maps page-level fields; its include is fixed (page
// inclusion is decided only through PageScope).
type BlockScope struct {
	block     *graph.Block
	page      *graph.Page
	synthetic bool
}

// IsPageRoot reports whether this scope is the synthetic depth-0 root.
func (b *BlockScope) IsPageRoot() bool { return b.synthetic }

// ID returns the block id, or the page id for the synthetic root.
func (b *BlockScope) ID() string {
	if b.synthetic {
		return b.page.ID
	}
	return b.block.ID
}

// Contents returns the block's raw text. The synthetic root yields the
// page title.
func (b *BlockScope) Contents() string {
	if b.synthetic {
		return b.page.Title
	}
	return b.block.Content
}

// HasPrefix reports whether the contents start with prefix.
func (b *BlockScope) HasPrefix(prefix string) bool {
	return strings.HasPrefix(b.Contents(), prefix)
}

// ContentIs reports whether the contents equal s exactly.
func (b *BlockScope) ContentIs(s string) bool { return b.Contents() == s }

// Tags returns a read-only snapshot of the node's tags.
func (b *BlockScope) Tags() []string {
	if b.synthetic {
		return b.page.Tags.Slice()
	}
	return b.block.Tags.Slice()
}

// AnyTag reports whether any tag satisfies pred.
func (b *BlockScope) AnyTag(pred func(string) bool) bool {
	if b.synthetic {
		return b.page.Tags.Any(pred)
	}
	return b.block.Tags.Any(pred)
}

// HasTag reports whether the node carries the named tag.
func (b *BlockScope) HasTag(name string) bool {
	return b.AnyTag(func(t string) bool { return t == name })
}

// AddTags unions tags into the node's tag set.
func (b *BlockScope) AddTags(names ...string) {
	if b.synthetic {
		b.page.Tags.Add(names...)
		return
	}
	b.block.Tags.Add(names...)
}

// AttrFirst returns the first value of an attribute, or "".
func (b *BlockScope) AttrFirst(name string) string {
	if b.synthetic {
		return b.page.AttrFirst(name)
	}
	return b.block.AttrFirst(name)
}

// Attr returns all values of an attribute.
func (b *BlockScope) Attr(name string) []string {
	if b.synthetic {
		return b.page.Attrs[name]
	}
	return b.block.Attrs[name]
}

// ViewType returns the node's view type.
func (b *BlockScope) ViewType() graph.ViewType {
	if b.synthetic {
		return b.page.ViewType
	}
	return b.block.ViewType
}

// SetViewType sets the node's view type. Children left unset inherit
// the nearest ancestor's resolved view at render time.
func (b *BlockScope) SetViewType(v graph.ViewType) {
	if b.synthetic {
		b.page.ViewType = v
		return
	}
	b.block.ViewType = v
}

// Heading returns the heading level, 0 for none.
func (b *BlockScope) Heading() int {
	if b.synthetic {
		return 0
	}
	return b.block.Heading
}

// SetHeading sets the heading level. Ignored on the synthetic root.
func (b *BlockScope) SetHeading(h int) {
	if b.synthetic || h < 0 {
		return
	}
	b.block.Heading = h
}

// Include returns the node's include policy value.
func (b *BlockScope) Include() graph.Include {
	if b.synthetic {
		return graph.IncludeUnset
	}
	return b.block.Include
}

// SetInclude sets the node's include policy value. Ignored on the
// synthetic root; page inclusion is decided through PageScope.
func (b *BlockScope) SetInclude(v graph.Include) {
	if b.synthetic {
		return
	}
	b.block.Include = v
}
