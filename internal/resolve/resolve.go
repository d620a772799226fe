// Package resolve expands block references, block embeds, and page
// embeds into literal content, producing the finalized node tree handed
// to the renderer. Cycle and depth guards make resolution safe on
// arbitrarily cyclic reference graphs.
package resolve

import (
	"fmt"
	"log/slog"

	"github.com/daverre/graphpress/internal/apperr"
	"github.com/daverre/graphpress/internal/graph"
	"github.com/daverre/graphpress/internal/policy"
	"github.com/daverre/graphpress/internal/report"
)

// DefaultMaxEmbedDepth bounds nested embed expansion.
const DefaultMaxEmbedDepth = 4

// Recovered-condition placeholders emitted in place of content.
const (
	CyclicPlaceholder = "[cyclic reference]"
	BrokenPlaceholder = "[missing reference]"
	TruncationMarker  = "[embed depth limit reached]"
)

// Kind classifies a resolved node.
type Kind int

const (
	// KindText is original block content.
	KindText Kind = iota
	// KindReference is another block's literal text, without children.
	KindReference
	// KindEmbed is another block's fully expanded subtree.
	KindEmbed
	// KindPageEmbed wraps another page's qualifying root content.
	KindPageEmbed
	// KindCyclic marks a recovered reference or embed cycle.
	KindCyclic
	// KindBroken marks a missing reference or embed target.
	KindBroken
	// KindTruncated marks an embed cut off at the depth limit.
	KindTruncated
)

// Node is one finalized output node. OnlyChildren and IfChildrenPresent
// substitutions are already applied structurally; view-type inheritance
// is left to the renderer.
type Node struct {
	BlockID string
	Kind    Kind
	Content string

	// Origin is the id of the pointing block for references and embeds,
	// kept for backlinking.
	Origin string

	// EmbedTitle is the embedded page's title on KindPageEmbed nodes.
	EmbedTitle string

	ViewType graph.ViewType
	Heading  int
	Children []*Node
}

// Resolver performs the cross-page resolution phase. It must only run
// after the policy phase has completed for every page.
type Resolver struct {
	store         *graph.Store
	results       map[string]*policy.Result
	maxEmbedDepth int
	log           *slog.Logger
	rep           *report.Collector
}

// New returns a resolver over store using the per-page policy results.
// maxEmbedDepth <= 0 selects DefaultMaxEmbedDepth.
func New(store *graph.Store, results map[string]*policy.Result, maxEmbedDepth int, logger *slog.Logger, rep *report.Collector) *Resolver {
	if maxEmbedDepth <= 0 {
		maxEmbedDepth = DefaultMaxEmbedDepth
	}
	return &Resolver{store: store, results: results, maxEmbedDepth: maxEmbedDepth, log: logger, rep: rep}
}

// ResolvePage builds the finalized node tree for one page. The root
// node represents the page itself.
func (r *Resolver) ResolvePage(pageID string) (*Node, error) {
	page, err := r.store.Page(pageID)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	res, ok := r.results[pageID]
	if !ok {
		return nil, fmt.Errorf("resolve: page %q has no policy result: %w", pageID, apperr.ErrNotFound)
	}

	visited := make(map[string]bool)
	root := &Node{
		BlockID:  page.ID,
		Kind:     KindText,
		ViewType: page.ViewType.Resolve(graph.ViewDocument),
		Children: r.resolveIncluded(page, res, page.Roots, 0, visited),
	}
	return root, nil
}

// resolveIncluded walks block ids applying the page's final statuses:
// excluded blocks are dropped, lifted blocks are replaced by their
// children in original order.
func (r *Resolver) resolveIncluded(page *graph.Page, res *policy.Result, ids []string, embedDepth int, visited map[string]bool) []*Node {
	var out []*Node
	for _, id := range ids {
		b, err := r.store.Block(id)
		if err != nil {
			// Already reported as malformed by the policy pass.
			continue
		}
		switch res.StatusOf(id) {
		case policy.StatusExcluded:
			continue
		case policy.StatusLifted:
			out = append(out, r.resolveIncluded(page, res, b.Children, embedDepth, visited)...)
		case policy.StatusSolo:
			if n := r.expand(page, b, embedDepth, visited, nil); n != nil {
				out = append(out, n)
			}
		case policy.StatusRendered:
			kids := r.resolveIncluded(page, res, b.Children, embedDepth, visited)
			if n := r.expand(page, b, embedDepth, visited, kids); n != nil {
				out = append(out, n)
			}
		}
	}
	return out
}

// expand turns one block into its resolved node. kids are the block's
// own already-resolved children. A nil return means the node is
// omitted entirely (an unembeddable page embed).
func (r *Resolver) expand(page *graph.Page, b *graph.Block, embedDepth int, visited map[string]bool, kids []*Node) *Node {
	switch b.RefKind {
	case graph.RefReference:
		n := r.followReference(page, b)
		n.Children = kids
		return n
	case graph.RefEmbed:
		n := r.embedBlock(page, b, b.RefTarget, embedDepth+1, visited)
		n.Children = append(n.Children, kids...)
		return n
	case graph.RefPageEmbed:
		n := r.embedPage(page, b, b.RefTarget, embedDepth+1, visited)
		if n == nil {
			return nil
		}
		n.Children = append(n.Children, kids...)
		return n
	default:
		return &Node{
			BlockID:  b.ID,
			Kind:     KindText,
			Content:  b.Content,
			ViewType: b.ViewType,
			Heading:  b.Heading,
			Children: kids,
		}
	}
}

// followReference chases a reference chain to its first non-reference
// block and yields that block's literal text, annotated with the
// pointing block's id. References never include the target's children.
// The chain keeps its own membership set: a reference stays valid even
// when its target is an ancestor of the surrounding embed expansion.
func (r *Resolver) followReference(page *graph.Page, origin *graph.Block) *Node {
	cur := origin.RefTarget
	seen := make(map[string]bool)

	for {
		if seen[cur] {
			r.rep.Add(apperr.ErrCycleDetected, page.ID, origin.ID, "reference chain loops back to "+cur)
			return &Node{BlockID: cur, Kind: KindCyclic, Content: CyclicPlaceholder, Origin: origin.ID}
		}
		t, err := r.store.Block(cur)
		if err != nil {
			r.rep.Add(apperr.ErrMissingTarget, page.ID, origin.ID, "reference target "+cur)
			r.log.Warn("broken reference",
				slog.String("page", page.ID),
				slog.String("block", origin.ID),
				slog.String("target", cur))
			return &Node{BlockID: cur, Kind: KindBroken, Content: BrokenPlaceholder, Origin: origin.ID}
		}
		if t.RefKind == graph.RefReference {
			seen[cur] = true
			cur = t.RefTarget
			continue
		}
		return &Node{
			BlockID:  t.ID,
			Kind:     KindReference,
			Content:  t.Content,
			ViewType: t.ViewType,
			Heading:  t.Heading,
			Origin:   origin.ID,
		}
	}
}

// embedBlock yields the target's full subtree, recursively resolved.
func (r *Resolver) embedBlock(page *graph.Page, origin *graph.Block, targetID string, embedDepth int, visited map[string]bool) *Node {
	if embedDepth > r.maxEmbedDepth {
		r.rep.Add(apperr.ErrMaxEmbedDepth, page.ID, origin.ID, "embedding "+targetID)
		r.log.Warn("embed depth limit reached",
			slog.String("page", page.ID),
			slog.String("block", origin.ID),
			slog.String("target", targetID))
		return &Node{BlockID: targetID, Kind: KindTruncated, Content: TruncationMarker, Origin: origin.ID}
	}
	if visited[targetID] {
		r.rep.Add(apperr.ErrCycleDetected, page.ID, origin.ID, "embed of "+targetID)
		return &Node{BlockID: targetID, Kind: KindCyclic, Content: CyclicPlaceholder, Origin: origin.ID}
	}
	t, err := r.store.Block(targetID)
	if err != nil {
		r.rep.Add(apperr.ErrMissingTarget, page.ID, origin.ID, "embed target "+targetID)
		r.log.Warn("broken embed",
			slog.String("page", page.ID),
			slog.String("block", origin.ID),
			slog.String("target", targetID))
		return &Node{BlockID: targetID, Kind: KindBroken, Content: BrokenPlaceholder, Origin: origin.ID}
	}

	visited[targetID] = true
	defer delete(visited, targetID)

	return &Node{
		BlockID:  t.ID,
		Kind:     KindEmbed,
		Content:  t.Content,
		ViewType: t.ViewType,
		Heading:  t.Heading,
		Origin:   origin.ID,
		Children: r.resolveEmbedded(page, t.Children, embedDepth, visited),
	}
}

// resolveEmbedded resolves an embedded subtree in full, without
// consulting inclusion statuses; nested pointers expand recursively.
func (r *Resolver) resolveEmbedded(page *graph.Page, ids []string, embedDepth int, visited map[string]bool) []*Node {
	var out []*Node
	for _, id := range ids {
		if visited[id] {
			r.rep.Add(apperr.ErrCycleDetected, page.ID, id, "embedded subtree revisits block")
			out = append(out, &Node{BlockID: id, Kind: KindCyclic, Content: CyclicPlaceholder})
			continue
		}
		b, err := r.store.Block(id)
		if err != nil {
			continue
		}
		visited[id] = true
		kids := r.resolveEmbedded(page, b.Children, embedDepth, visited)
		delete(visited, id)
		if n := r.expand(page, b, embedDepth, visited, kids); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Embeddable reports whether a page's content may be embedded
// elsewhere, combining its inclusion decision with its embedding
// policy.
func Embeddable(include bool, allow graph.AllowEmbed) bool {
	if include {
		return allow != graph.EmbedNo
	}
	return allow == graph.EmbedYes
}

// embedPage yields another page's qualifying root content. A nil
// return omits the node: the target refuses embedding or is absent
// without opt-in.
func (r *Resolver) embedPage(page *graph.Page, origin *graph.Block, title string, embedDepth int, visited map[string]bool) *Node {
	target, ok := r.store.PageByTitle(title)
	if !ok {
		r.rep.Add(apperr.ErrMissingTarget, page.ID, origin.ID, "page embed target "+title)
		r.log.Warn("broken page embed",
			slog.String("page", page.ID),
			slog.String("block", origin.ID),
			slog.String("target", title))
		return &Node{Kind: KindBroken, Content: BrokenPlaceholder, Origin: origin.ID}
	}
	if !Embeddable(target.Include, target.AllowEmbed) {
		return nil
	}
	if embedDepth > r.maxEmbedDepth {
		r.rep.Add(apperr.ErrMaxEmbedDepth, page.ID, origin.ID, "embedding page "+title)
		return &Node{BlockID: target.ID, Kind: KindTruncated, Content: TruncationMarker, Origin: origin.ID}
	}
	key := "page:" + target.ID
	if visited[key] {
		r.rep.Add(apperr.ErrCycleDetected, page.ID, origin.ID, "page embed of "+title)
		return &Node{BlockID: target.ID, Kind: KindCyclic, Content: CyclicPlaceholder, Origin: origin.ID}
	}
	res, ok := r.results[target.ID]
	if !ok {
		return nil
	}

	visited[key] = true
	defer delete(visited, key)

	return &Node{
		BlockID:    target.ID,
		Kind:       KindPageEmbed,
		EmbedTitle: target.Title,
		ViewType:   target.ViewType,
		Origin:     origin.ID,
		Children:   r.resolveIncluded(target, res, target.Roots, embedDepth, visited),
	}
}
