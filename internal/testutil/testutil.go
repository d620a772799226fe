// Package testutil provides shared test helpers for building graphs and cache databases.
package testutil

import (
	"os"
	"testing"

	"github.com/daverre/graphpress/internal/cache"
	"github.com/daverre/graphpress/internal/graph"
	"github.com/daverre/graphpress/internal/tags"
)

// TestCache creates a temporary SQLite render cache that is automatically cleaned up.
func TestCache(t *testing.T) *cache.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "graphpress-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := cache.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// PageSpec describes a page to add to a test graph.
type PageSpec struct {
	ID        string
	Title     string
	IsJournal bool
	Include   bool
	Allow     graph.AllowEmbed
	View      graph.ViewType
	Attrs     map[string][]string
	Blocks    []BlockSpec
}

// BlockSpec describes a block subtree under a test page.
type BlockSpec struct {
	ID        string
	Content   string
	Tags      []string
	Attrs     map[string][]string
	RefTarget string
	RefKind   graph.RefKind
	View      graph.ViewType
	Heading   int
	Include   graph.Include
	Children  []BlockSpec
}

// BuildStore assembles a graph.Store from page specs.
func BuildStore(t *testing.T, pages ...PageSpec) *graph.Store {
	t.Helper()
	store := graph.NewStore()
	for _, ps := range pages {
		page := &graph.Page{
			ID:         ps.ID,
			Title:      ps.Title,
			IsJournal:  ps.IsJournal,
			Include:    ps.Include,
			AllowEmbed: ps.Allow,
			ViewType:   ps.View,
			Attrs:      ps.Attrs,
		}
		if err := store.AddPage(page); err != nil {
			t.Fatal(err)
		}
		for _, bs := range ps.Blocks {
			addBlock(t, store, ps.ID, "", bs)
		}
	}
	return store
}

func addBlock(t *testing.T, store *graph.Store, pageID, parent string, bs BlockSpec) {
	t.Helper()
	set := &tags.Set{}
	set.Add(bs.Tags...)
	block := &graph.Block{
		ID:        bs.ID,
		PageID:    pageID,
		Parent:    parent,
		Content:   bs.Content,
		Tags:      set,
		Attrs:     bs.Attrs,
		RefTarget: bs.RefTarget,
		RefKind:   bs.RefKind,
		ViewType:  bs.View,
		Heading:   bs.Heading,
		Include:   bs.Include,
	}
	if err := store.AddBlock(block); err != nil {
		t.Fatal(err)
	}
	for _, child := range bs.Children {
		addBlock(t, store, pageID, bs.ID, child)
	}
}
