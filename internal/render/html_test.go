package render

import (
	"strings"
	"testing"

	"github.com/daverre/graphpress/internal/graph"
	"github.com/daverre/graphpress/internal/resolve"
	"github.com/daverre/graphpress/internal/tags"
)

func page(title string, tagNames ...string) *graph.Page {
	return &graph.Page{ID: "p1", Title: title, Tags: tags.NewSet(tagNames...)}
}

func TestRenderPageTitleAndTags(t *testing.T) {
	root := &resolve.Node{ViewType: graph.ViewDocument}
	out := string(New().RenderPage(page("My <Page>", "alpha", "beta"), root))

	if !strings.Contains(out, "<h1>My &lt;Page&gt;</h1>") {
		t.Errorf("title missing or unescaped:\n%s", out)
	}
	if !strings.Contains(out, `<span class="tag">alpha</span> <span class="tag">beta</span>`) {
		t.Errorf("tags missing:\n%s", out)
	}
}

func TestRenderPageWithoutTagsOmitsTagBlock(t *testing.T) {
	root := &resolve.Node{ViewType: graph.ViewDocument}
	out := string(New().RenderPage(page("Plain"), root))
	if strings.Contains(out, "page-tags") {
		t.Errorf("empty tag block rendered:\n%s", out)
	}
}

func TestRenderViewTypes(t *testing.T) {
	tests := []struct {
		view graph.ViewType
		tag  string
	}{
		{graph.ViewBullet, `<ul class="list-bullet">`},
		{graph.ViewNumbered, `<ol class="list-numbered">`},
		{graph.ViewDocument, `<ul class="list-document">`},
	}
	for _, tt := range tests {
		root := &resolve.Node{
			ViewType: tt.view,
			Children: []*resolve.Node{{BlockID: "b1", Content: "x"}},
		}
		out := string(New().RenderPage(page("T"), root))
		if !strings.Contains(out, tt.tag) {
			t.Errorf("view %v: %q not found in:\n%s", tt.view, tt.tag, out)
		}
	}
}

func TestRenderViewInheritance(t *testing.T) {
	// The numbered child carries its own view for its children; the
	// unset grandchild inherits numbered.
	root := &resolve.Node{
		ViewType: graph.ViewDocument,
		Children: []*resolve.Node{{
			BlockID:  "b1",
			Content:  "outer",
			ViewType: graph.ViewNumbered,
			Children: []*resolve.Node{{BlockID: "b2", Content: "inner"}},
		}},
	}
	out := string(New().RenderPage(page("T"), root))
	if !strings.Contains(out, `<ol class="list-numbered">`) {
		t.Errorf("child list did not inherit numbered view:\n%s", out)
	}
}

func TestRenderEscapesContent(t *testing.T) {
	root := &resolve.Node{
		ViewType: graph.ViewBullet,
		Children: []*resolve.Node{{BlockID: "b1", Content: `<script>alert("x")</script>`}},
	}
	out := string(New().RenderPage(page("T"), root))
	if strings.Contains(out, "<script>") {
		t.Errorf("content not escaped:\n%s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Errorf("escaped content missing:\n%s", out)
	}
}

func TestRenderHeading(t *testing.T) {
	root := &resolve.Node{
		ViewType: graph.ViewBullet,
		Children: []*resolve.Node{{BlockID: "b1", Content: "Title", Heading: 2}},
	}
	out := string(New().RenderPage(page("T"), root))
	if !strings.Contains(out, `<span class="heading-2">Title</span>`) {
		t.Errorf("heading markup missing:\n%s", out)
	}
}

func TestRenderSpecialKinds(t *testing.T) {
	root := &resolve.Node{
		ViewType: graph.ViewBullet,
		Children: []*resolve.Node{
			{BlockID: "r", Kind: resolve.KindReference, Content: "ref text", Origin: "o1"},
			{BlockID: "e", Kind: resolve.KindEmbed, Content: "embed text"},
			{BlockID: "pe", Kind: resolve.KindPageEmbed, EmbedTitle: "Other"},
			{BlockID: "c", Kind: resolve.KindCyclic, Content: resolve.CyclicPlaceholder},
			{BlockID: "m", Kind: resolve.KindBroken, Content: resolve.BrokenPlaceholder},
		},
	}
	out := string(New().RenderPage(page("T"), root))

	for _, want := range []string{
		`<span class="block-ref" data-origin="o1">ref text</span>`,
		`<div class="block-embed">embed text</div>`,
		`<div class="page-embed"><h3>Other</h3></div>`,
		`<span class="unresolved">[cyclic reference]</span>`,
		`<span class="unresolved">[missing reference]</span>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("%q not found in:\n%s", want, out)
		}
	}
}

func TestRenderBlockIDAnchor(t *testing.T) {
	root := &resolve.Node{
		ViewType: graph.ViewBullet,
		Children: []*resolve.Node{{BlockID: "block-42", Content: "x"}},
	}
	out := string(New().RenderPage(page("T"), root))
	if !strings.Contains(out, `<li id="block-42">`) {
		t.Errorf("anchor missing:\n%s", out)
	}
}
