// Package ingest loads a Logseq JSON export into the graph store. The
// export is a flat list of page blocks, each carrying its child blocks
// inline. Richer formats (Roam EDN, Logseq markdown directories) are
// out of scope; this loader is the batch front door.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/daverre/graphpress/internal/graph"
	"github.com/daverre/graphpress/internal/tags"
)

type jsonBlock struct {
	ID         string         `json:"id"`
	PageName   string         `json:"page-name"`
	Properties map[string]any `json:"properties"`
	Children   []jsonBlock    `json:"children"`
	Content    string         `json:"content"`
}

type jsonFile struct {
	Version int         `json:"version"`
	Blocks  []jsonBlock `json:"blocks"`
}

var (
	refPattern       = regexp.MustCompile(`^\(\(([A-Za-z0-9_-]+)\)\)$`)
	embedPattern     = regexp.MustCompile(`^\{\{embed \(\(([A-Za-z0-9_-]+)\)\)\}\}$`)
	pageEmbedPattern = regexp.MustCompile(`^\{\{embed \[\[(.+)\]\]\}\}$`)
	hashtagPattern   = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_-]+)`)
)

// LoadFile reads a Logseq JSON export from disk into store.
func LoadFile(path string, store *graph.Store, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ingest: open export: %w", err)
	}
	defer f.Close()
	return Load(f, store, logger)
}

// Load parses the export and populates store. Individual malformed
// blocks are skipped with a warning; a structurally unreadable export
// is an error.
func Load(r io.Reader, store *graph.Store, logger *slog.Logger) error {
	var file jsonFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return fmt.Errorf("ingest: decode export: %w", err)
	}

	for _, jb := range file.Blocks {
		if jb.PageName == "" {
			logger.Warn("ingest: top-level block without page name skipped",
				slog.String("id", jb.ID))
			continue
		}
		id := jb.ID
		if id == "" {
			id = jb.PageName
		}
		page := &graph.Page{
			ID:        id,
			Title:     jb.PageName,
			IsJournal: boolProp(jb.Properties, "journal?"),
			Tags:      tags.NewSet(stringsProp(jb.Properties, "tags")...),
			Attrs:     attrsFrom(jb.Properties),
		}
		if err := store.AddPage(page); err != nil {
			logger.Warn("ingest: page skipped",
				slog.String("title", jb.PageName),
				slog.String("error", err.Error()))
			continue
		}
		for _, child := range jb.Children {
			addBlock(store, page.ID, "", child, logger)
		}
	}
	return nil
}

func addBlock(store *graph.Store, pageID, parent string, jb jsonBlock, logger *slog.Logger) {
	content := strings.TrimSpace(jb.Content)
	b := &graph.Block{
		ID:      jb.ID,
		PageID:  pageID,
		Parent:  parent,
		Content: content,
		Tags:    tags.NewSet(inlineTags(content)...),
		Attrs:   attrsFrom(jb.Properties),
	}
	b.RefTarget, b.RefKind = detectRef(content)

	if err := store.AddBlock(b); err != nil {
		logger.Warn("ingest: block skipped",
			slog.String("page", pageID),
			slog.String("id", jb.ID),
			slog.String("error", err.Error()))
		return
	}
	for _, child := range jb.Children {
		addBlock(store, pageID, b.ID, child, logger)
	}
}

// detectRef recognizes a block whose whole content is a pointer.
func detectRef(content string) (string, graph.RefKind) {
	if m := refPattern.FindStringSubmatch(content); m != nil {
		return m[1], graph.RefReference
	}
	if m := embedPattern.FindStringSubmatch(content); m != nil {
		return m[1], graph.RefEmbed
	}
	if m := pageEmbedPattern.FindStringSubmatch(content); m != nil {
		return m[1], graph.RefPageEmbed
	}
	return "", graph.RefNone
}

// inlineTags extracts #hashtag tokens from block text.
func inlineTags(content string) []string {
	var out []string
	for _, m := range hashtagPattern.FindAllStringSubmatch(content, -1) {
		out = append(out, m[1])
	}
	return out
}

func boolProp(props map[string]any, name string) bool {
	v, ok := props[name].(bool)
	return ok && v
}

func stringsProp(props map[string]any, name string) []string {
	switch v := props[name].(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func attrsFrom(props map[string]any) map[string][]string {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string][]string, len(props))
	for name, v := range props {
		switch val := v.(type) {
		case string:
			out[name] = []string{val}
		case bool:
			out[name] = []string{fmt.Sprintf("%t", val)}
		case float64:
			out[name] = []string{strings.TrimSuffix(fmt.Sprintf("%v", val), ".0")}
		case []any:
			var vs []string
			for _, item := range val {
				if s, ok := item.(string); ok {
					vs = append(vs, s)
				}
			}
			if len(vs) > 0 {
				out[name] = vs
			}
		}
	}
	return out
}
