// Package graph owns the in-memory page and block records for one
// export run. Storage is flat and id-indexed; parent, child, and
// backreference links are plain string keys so that cyclic reference
// graphs cannot create ownership cycles.
package graph

import (
	"fmt"

	"github.com/daverre/graphpress/internal/apperr"
	"github.com/daverre/graphpress/internal/tags"
)

// ViewType is a rendering hint attached to a block. An unset value
// inherits the nearest ancestor's resolved view type at render time.
type ViewType int

const (
	ViewInherit ViewType = iota
	ViewBullet
	ViewNumbered
	ViewDocument
)

// ViewTypeFrom maps a configuration or script string to a ViewType.
// Unknown values map to ViewInherit.
func ViewTypeFrom(s string) ViewType {
	switch s {
	case "bullet":
		return ViewBullet
	case "numbered":
		return ViewNumbered
	case "document":
		return ViewDocument
	default:
		return ViewInherit
	}
}

func (v ViewType) String() string {
	switch v {
	case ViewBullet:
		return "bullet"
	case ViewNumbered:
		return "numbered"
	case ViewDocument:
		return "document"
	default:
		return "inherit"
	}
}

// Resolve returns v, or parent when v is unset.
func (v ViewType) Resolve(parent ViewType) ViewType {
	if v == ViewInherit {
		return parent
	}
	return v
}

// Include is a per-block inclusion policy value.
type Include int

const (
	// IncludeUnset resolves during the bottom-up pass: blocks below an
	// explicitly-including ancestor are included, everything else is
	// excluded.
	IncludeUnset Include = iota
	// IncludeYes renders the block and its children.
	IncludeYes
	// IncludeExclude omits the block and its whole subtree.
	IncludeExclude
	// IncludeOnlyChildren omits the block's own content and renders its
	// children in its place, in original order.
	IncludeOnlyChildren
	// IncludeIfChildrenPresent behaves as IncludeYes only when at least
	// one child resolves to a non-excluded state.
	IncludeIfChildrenPresent
	// IncludeJustBlock renders the block's own content but none of its
	// children.
	IncludeJustBlock
)

// IncludeFrom maps a script string to an Include value.
func IncludeFrom(s string) Include {
	switch s {
	case "include":
		return IncludeYes
	case "exclude":
		return IncludeExclude
	case "only_children":
		return IncludeOnlyChildren
	case "if_children_present":
		return IncludeIfChildrenPresent
	case "just_block":
		return IncludeJustBlock
	default:
		return IncludeUnset
	}
}

func (i Include) String() string {
	switch i {
	case IncludeYes:
		return "include"
	case IncludeExclude:
		return "exclude"
	case IncludeOnlyChildren:
		return "only_children"
	case IncludeIfChildrenPresent:
		return "if_children_present"
	case IncludeJustBlock:
		return "just_block"
	default:
		return "unset"
	}
}

// AllowEmbed controls whether other pages may embed this page.
type AllowEmbed int

const (
	EmbedDefault AllowEmbed = iota
	EmbedYes
	EmbedNo
)

// AllowEmbedFrom maps a script string to an AllowEmbed value.
func AllowEmbedFrom(s string) AllowEmbed {
	switch s {
	case "yes":
		return EmbedYes
	case "no":
		return EmbedNo
	default:
		return EmbedDefault
	}
}

func (a AllowEmbed) String() string {
	switch a {
	case EmbedYes:
		return "yes"
	case EmbedNo:
		return "no"
	default:
		return "default"
	}
}

// RefKind classifies a block that is a pointer rather than original
// content.
type RefKind int

const (
	RefNone RefKind = iota
	// RefReference yields the target block's literal text only.
	RefReference
	// RefEmbed yields the target block's full subtree.
	RefEmbed
	// RefPageEmbed yields the qualifying root content of another page.
	// The target field holds the page title.
	RefPageEmbed
)

// Page is a top-level exportable document.
type Page struct {
	ID        string
	Title     string
	IsJournal bool

	URLBase  string
	PathBase string
	PathName string

	// Include defaults to false: nothing is published unless a script
	// explicitly opts the page in.
	Include    bool
	AllowEmbed AllowEmbed

	// ViewType is the page root's view, resolved to ViewDocument when
	// unset.
	ViewType ViewType

	Roots []string
	Tags  *tags.Set
	Attrs map[string][]string
}

// AttrFirst returns the first value of the named attribute, or "".
func (p *Page) AttrFirst(name string) string {
	if vs := p.Attrs[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Block is one node in a page's outline tree.
type Block struct {
	ID     string
	PageID string

	Parent   string // empty for roots
	Children []string

	Content string
	Tags    *tags.Set
	Attrs   map[string][]string

	// RefTarget and RefKind are set when this block represents a pointer
	// rather than original content. For RefPageEmbed the target is a
	// page title.
	RefTarget string
	RefKind   RefKind

	ViewType ViewType
	Heading  int
	Include  Include
}

// AttrFirst returns the first value of the named attribute, or "".
func (b *Block) AttrFirst(name string) string {
	if vs := b.Attrs[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Store holds every page and block for one run. It is single-writer
// during ingestion and read-many afterwards; no global state.
type Store struct {
	pages     map[string]*Page
	blocks    map[string]*Block
	titles    map[string]string // ingested title -> page id
	pageOrder []string

	backrefs map[string][]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		pages:  make(map[string]*Page),
		blocks: make(map[string]*Block),
		titles: make(map[string]string),
	}
}

// AddPage inserts a page. The id and ingested title must be unique.
func (s *Store) AddPage(p *Page) error {
	if p.ID == "" {
		return fmt.Errorf("graph: add page: %w: empty id", apperr.ErrMalformedBlock)
	}
	if _, ok := s.pages[p.ID]; ok {
		return fmt.Errorf("graph: add page: duplicate id %q", p.ID)
	}
	if p.Tags == nil {
		p.Tags = &tags.Set{}
	}
	s.pages[p.ID] = p
	s.titles[p.Title] = p.ID
	s.pageOrder = append(s.pageOrder, p.ID)
	return nil
}

// AddBlock inserts a block under its parent, or as a page root when
// Parent is empty. The owning page must already exist.
func (s *Store) AddBlock(b *Block) error {
	if b.ID == "" {
		return fmt.Errorf("graph: add block: %w: empty id", apperr.ErrMalformedBlock)
	}
	if _, ok := s.blocks[b.ID]; ok {
		return fmt.Errorf("graph: add block: duplicate id %q", b.ID)
	}
	page, ok := s.pages[b.PageID]
	if !ok {
		return fmt.Errorf("graph: add block %q: page %q: %w", b.ID, b.PageID, apperr.ErrNotFound)
	}
	if b.Tags == nil {
		b.Tags = &tags.Set{}
	}
	if b.Parent == "" {
		page.Roots = append(page.Roots, b.ID)
	} else {
		parent, ok := s.blocks[b.Parent]
		if !ok {
			return fmt.Errorf("graph: add block %q: parent %q: %w", b.ID, b.Parent, apperr.ErrNotFound)
		}
		parent.Children = append(parent.Children, b.ID)
	}
	s.blocks[b.ID] = b
	return nil
}

// Page looks up a page by id.
func (s *Store) Page(id string) (*Page, error) {
	p, ok := s.pages[id]
	if !ok {
		return nil, fmt.Errorf("graph: page %q: %w", id, apperr.ErrNotFound)
	}
	return p, nil
}

// Block looks up a block by id.
func (s *Store) Block(id string) (*Block, error) {
	b, ok := s.blocks[id]
	if !ok {
		return nil, fmt.Errorf("graph: block %q: %w", id, apperr.ErrNotFound)
	}
	return b, nil
}

// PageByTitle looks up a page by its ingested title.
func (s *Store) PageByTitle(title string) (*Page, bool) {
	id, ok := s.titles[title]
	if !ok {
		return nil, false
	}
	return s.pages[id], true
}

// Pages returns every page in insertion order.
func (s *Store) Pages() []*Page {
	out := make([]*Page, 0, len(s.pageOrder))
	for _, id := range s.pageOrder {
		out = append(out, s.pages[id])
	}
	return out
}

// BuildBackrefs builds the backreference index in a single pass over
// all blocks. Call once, after ingestion completes and before any
// cross-page resolution.
func (s *Store) BuildBackrefs() {
	s.backrefs = make(map[string][]string)
	seen := make(map[string]bool, len(s.blocks))
	for _, id := range s.pageOrder {
		s.collectBackrefs(s.pages[id].Roots, seen)
	}
}

// collectBackrefs guards against malformed child cycles with seen; the
// policy pass reports those separately.
func (s *Store) collectBackrefs(ids []string, seen map[string]bool) {
	for _, id := range ids {
		b, ok := s.blocks[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		if b.RefKind == RefReference || b.RefKind == RefEmbed {
			s.backrefs[b.RefTarget] = append(s.backrefs[b.RefTarget], b.ID)
		}
		s.collectBackrefs(b.Children, seen)
	}
}

// Backrefs returns the ids of blocks that reference or embed target.
func (s *Store) Backrefs(target string) []string {
	return s.backrefs[target]
}
