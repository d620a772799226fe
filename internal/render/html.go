// Package render turns a finalized, resolved node tree into HTML.
// View-type inheritance is resolved here, lazily: a node with an unset
// view takes the nearest ancestor's resolved view, Document at the
// root.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/daverre/graphpress/internal/graph"
	"github.com/daverre/graphpress/internal/resolve"
)

// HTML renders resolved pages as nested list markup.
type HTML struct{}

// New returns an HTML renderer.
func New() *HTML {
	return &HTML{}
}

// RenderPage renders the page title and body. root must come from
// resolve.ResolvePage.
func (h *HTML) RenderPage(page *graph.Page, root *resolve.Node) []byte {
	var sb strings.Builder
	sb.WriteString("<article>\n")
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(page.Title))
	if ts := page.Tags.Slice(); len(ts) > 0 {
		sb.WriteString(`<div class="page-tags">`)
		for i, t := range ts {
			if i > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, `<span class="tag">%s</span>`, html.EscapeString(t))
		}
		sb.WriteString("</div>\n")
	}
	view := root.ViewType.Resolve(graph.ViewDocument)
	h.renderChildren(&sb, root.Children, view, 0)
	sb.WriteString("</article>\n")
	return []byte(sb.String())
}

func listTags(view graph.ViewType) (string, string) {
	switch view {
	case graph.ViewNumbered:
		return "<ol class=\"list-numbered\">\n", "</ol>\n"
	case graph.ViewDocument:
		return "<ul class=\"list-document\">\n", "</ul>\n"
	default:
		return "<ul class=\"list-bullet\">\n", "</ul>\n"
	}
}

func (h *HTML) renderChildren(sb *strings.Builder, nodes []*resolve.Node, parentView graph.ViewType, depth int) {
	if len(nodes) == 0 {
		return
	}
	openTag, closeTag := listTags(parentView)
	indent := strings.Repeat("  ", depth)
	sb.WriteString(indent)
	sb.WriteString(openTag)
	for _, n := range nodes {
		h.renderNode(sb, n, parentView, depth+1)
	}
	sb.WriteString(indent)
	sb.WriteString(closeTag)
}

func (h *HTML) renderNode(sb *strings.Builder, n *resolve.Node, parentView graph.ViewType, depth int) {
	view := n.ViewType.Resolve(parentView)
	indent := strings.Repeat("  ", depth)

	sb.WriteString(indent)
	if n.BlockID != "" {
		fmt.Fprintf(sb, `<li id="%s">`, html.EscapeString(n.BlockID))
	} else {
		sb.WriteString("<li>")
	}

	sb.WriteString(h.renderContent(n))

	if len(n.Children) > 0 {
		sb.WriteString("\n")
		h.renderChildren(sb, n.Children, view, depth+1)
		sb.WriteString(indent)
	}
	sb.WriteString("</li>\n")
}

func (h *HTML) renderContent(n *resolve.Node) string {
	switch n.Kind {
	case resolve.KindCyclic, resolve.KindBroken, resolve.KindTruncated:
		return fmt.Sprintf(`<span class="unresolved">%s</span>`, html.EscapeString(n.Content))
	case resolve.KindReference:
		return fmt.Sprintf(`<span class="block-ref" data-origin="%s">%s</span>`,
			html.EscapeString(n.Origin), h.heading(n))
	case resolve.KindEmbed:
		return fmt.Sprintf(`<div class="block-embed">%s</div>`, h.heading(n))
	case resolve.KindPageEmbed:
		return fmt.Sprintf(`<div class="page-embed"><h3>%s</h3></div>`,
			html.EscapeString(n.EmbedTitle))
	default:
		return h.heading(n)
	}
}

func (h *HTML) heading(n *resolve.Node) string {
	escaped := html.EscapeString(n.Content)
	if n.Heading > 0 {
		return fmt.Sprintf(`<span class="heading-%d">%s</span>`, n.Heading, escaped)
	}
	return escaped
}
