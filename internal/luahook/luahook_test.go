package luahook_test

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/daverre/graphpress/internal/apperr"
	"github.com/daverre/graphpress/internal/graph"
	"github.com/daverre/graphpress/internal/luahook"
	"github.com/daverre/graphpress/internal/policy"
	"github.com/daverre/graphpress/internal/report"
	"github.com/daverre/graphpress/internal/testutil"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func evalScript(t *testing.T, store *graph.Store, cfg policy.Config, script string) (*policy.Result, *report.Collector) {
	t.Helper()
	hook := luahook.FromSource("test.lua", script)
	rep := report.New()
	ev := policy.New(store, hook, cfg, discard(), rep)
	pages := store.Pages()
	if len(pages) == 0 {
		t.Fatal("no pages")
	}
	res, err := ev.EvaluatePage(pages[0].ID)
	if err != nil {
		t.Fatalf("EvaluatePage: %v", err)
	}
	return res, rep
}

func TestScriptIncludesPageAndBlocks(t *testing.T) {
	store := testutil.BuildStore(t, testutil.PageSpec{
		ID: "p1", Title: "Notes",
		Blocks: []testutil.BlockSpec{
			{ID: "b1", Content: "keep me"},
			{ID: "b2", Content: "skip me"},
		},
	})

	res, _ := evalScript(t, store, policy.Config{}, `
if not page:include() then
	page:set_include(true)
end
page:each_block(UNBOUNDED, function(block, depth)
	if block:is("keep me") then
		block:set_include("include")
	end
end)
`)

	page, _ := store.Page("p1")
	if !page.Include {
		t.Error("page not included")
	}
	if res.StatusOf("b1") != policy.StatusRendered {
		t.Errorf("b1 = %v, want rendered", res.StatusOf("b1"))
	}
	if res.StatusOf("b2") != policy.StatusExcluded {
		t.Errorf("b2 = %v, want excluded", res.StatusOf("b2"))
	}
}

func TestScriptJournalOnlyChildren(t *testing.T) {
	store := testutil.BuildStore(t, testutil.PageSpec{
		ID: "p1", Title: "2024-05-01", IsJournal: true,
		Blocks: []testutil.BlockSpec{
			{ID: "hdr", Content: "Journal", Children: []testutil.BlockSpec{
				{ID: "e1", Content: "did X"},
				{ID: "e2", Content: "did Y"},
			}},
		},
	})

	res, _ := evalScript(t, store, policy.Config{}, `
if page:is_journal() then
	page:set_include(true)
	page:each_block(1, function(block, depth)
		if block:is("Journal") then
			block:set_include("only_children")
		end
	end)
end
`)

	if res.StatusOf("hdr") != policy.StatusLifted {
		t.Errorf("hdr = %v, want lifted", res.StatusOf("hdr"))
	}
	if res.StatusOf("e1") != policy.StatusRendered || res.StatusOf("e2") != policy.StatusRendered {
		t.Errorf("entries = %v / %v, want rendered", res.StatusOf("e1"), res.StatusOf("e2"))
	}
}

func TestScriptPageMutations(t *testing.T) {
	store := testutil.BuildStore(t, testutil.PageSpec{
		ID: "p1", Title: "Book/A Long Read",
		Attrs: map[string][]string{"author": {"jane"}},
	})

	evalScript(t, store, policy.Config{}, `
local leaf = page:pop_title_segment()
page:set_title(leaf)
page:set_path_base("books")
page:set_path_name(leaf .. ".html")
page:set_url_base("/books")
page:add_tags({"Books", page:attr_first("author")})
page:remove_tag("Books")
page:set_allow_embedding("no")
page:set_include(true)
`)

	page, _ := store.Page("p1")
	if page.Title != "A Long Read" {
		t.Errorf("Title = %q", page.Title)
	}
	if page.PathBase != "books" || page.PathName != "A Long Read.html" || page.URLBase != "/books" {
		t.Errorf("paths = %q %q %q", page.PathBase, page.PathName, page.URLBase)
	}
	if got := page.Tags.Slice(); !reflect.DeepEqual(got, []string{"jane"}) {
		t.Errorf("tags = %v, want [jane]", got)
	}
	if page.AllowEmbed != graph.EmbedNo {
		t.Errorf("AllowEmbed = %v, want no", page.AllowEmbed)
	}
}

func TestScriptBlockMutations(t *testing.T) {
	store := testutil.BuildStore(t, testutil.PageSpec{
		ID: "p1", Title: "A",
		Blocks: []testutil.BlockSpec{
			{ID: "b1", Content: "# Heading text", Tags: []string{"seed"}},
		},
	})

	evalScript(t, store, policy.Config{}, `
page:set_include(true)
page:each_block(UNBOUNDED, function(block, depth)
	if block:is_page_root() then return end
	if block:has_prefix("# ") and block:has_tag("seed") then
		block:set_heading(1)
		block:set_view_type("numbered")
		block:add_tags({"heading"})
		block:set_include("just_block")
	end
end)
`)

	b, err := store.Block("b1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Heading != 1 || b.ViewType != graph.ViewNumbered || b.Include != graph.IncludeJustBlock {
		t.Errorf("mutations not applied: %+v", b)
	}
	if !b.Tags.Has("heading") {
		t.Error("tag not added")
	}
}

func TestScriptAutotagHelper(t *testing.T) {
	store := testutil.BuildStore(t, testutil.PageSpec{
		ID: "p1", Title: "A",
		Blocks: []testutil.BlockSpec{
			{ID: "b1", Content: "deep dive into golang internals"},
		},
	})
	cfg := policy.Config{Autotag: map[string]string{"golang": "Programming"}}

	evalScript(t, store, cfg, `
page:set_include(true)
page:each_block(1, function(block, depth)
	if block:is_page_root() then return end
	local matched = autotag(autotag_config(), block:id())
	page:add_tags(matched)
end)
`)

	page, _ := store.Page("p1")
	if got := page.Tags.Slice(); !reflect.DeepEqual(got, []string{"Programming"}) {
		t.Errorf("tags = %v, want [Programming]", got)
	}
}

func TestScriptErrorWrapsScriptFailed(t *testing.T) {
	store := testutil.BuildStore(t, testutil.PageSpec{ID: "p1", Title: "A"})

	hook := luahook.FromSource("bad.lua", `error("kaboom")`)
	rep := report.New()
	ev := policy.New(store, hook, policy.Config{}, discard(), rep)

	if _, err := ev.EvaluatePage("p1"); err != nil {
		t.Fatalf("EvaluatePage: %v", err)
	}
	page, _ := store.Page("p1")
	if page.Include {
		t.Error("page included after script error")
	}
	items := rep.Items()
	if len(items) != 1 || !errors.Is(items[0].Kind, apperr.ErrScriptFailed) {
		t.Errorf("report = %v, want one ErrScriptFailed", items)
	}
}

func TestScriptSyntaxError(t *testing.T) {
	hook := luahook.FromSource("broken.lua", `this is not lua`)
	store := testutil.BuildStore(t, testutil.PageSpec{ID: "p1", Title: "A"})
	ev := policy.New(store, hook, policy.Config{}, discard(), report.New())

	if _, err := ev.EvaluatePage("p1"); err != nil {
		t.Fatalf("syntax errors must not abort the run: %v", err)
	}
	page, _ := store.Page("p1")
	if page.Include {
		t.Error("page included after unparseable script")
	}
}

func TestLoadMissingScript(t *testing.T) {
	if _, err := luahook.Load("/nonexistent/script.lua"); err == nil {
		t.Error("expected error for missing script file")
	}
}
