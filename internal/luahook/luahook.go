// Package luahook runs a user-provided Lua script as the per-page
// policy hook. Each page gets a fresh interpreter state with a `page`
// object bound to the policy facade, so script state cannot leak
// between pages or workers.
package luahook

import (
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"

	"github.com/daverre/graphpress/internal/apperr"
	"github.com/daverre/graphpress/internal/graph"
	"github.com/daverre/graphpress/internal/policy"
)

const (
	pageTypeName  = "graphpress.page"
	blockTypeName = "graphpress.block"
)

// Hook holds the compiled-on-demand script source.
type Hook struct {
	source string
	name   string
}

// Load reads a Lua script from disk.
func Load(path string) (*Hook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("luahook: read script: %w", err)
	}
	return &Hook{source: string(data), name: path}, nil
}

// FromSource wraps an in-memory script, mainly for tests.
func FromSource(name, source string) *Hook {
	return &Hook{source: source, name: name}
}

// RunPage executes the script against one page. Script failures are
// returned wrapped in apperr.ErrScriptFailed; the evaluator excludes
// the page and the run continues.
func (h *Hook) RunPage(p *policy.PageScope) error {
	L := lua.NewState()
	defer L.Close()

	registerTypes(L)
	L.SetGlobal("page", wrapPage(L, p))
	L.SetGlobal("UNBOUNDED", lua.LNumber(policy.Unbounded))
	L.SetGlobal("autotag", L.NewFunction(func(L *lua.LState) int {
		mapping := tableToMap(L.CheckTable(1))
		blockID := L.CheckString(2)
		matched, err := p.Autotag(mapping, blockID)
		if err != nil {
			L.RaiseError("autotag: %s", err)
			return 0
		}
		L.Push(stringsToTable(L, matched))
		return 1
	}))
	L.SetGlobal("autotag_config", L.NewFunction(func(L *lua.LState) int {
		mt := L.NewTable()
		for k, v := range p.ConfiguredAutotag() {
			L.SetField(mt, k, lua.LString(v))
		}
		L.Push(mt)
		return 1
	}))

	if err := L.DoString(h.source); err != nil {
		return fmt.Errorf("%w: %s: %v", apperr.ErrScriptFailed, h.name, err)
	}
	return nil
}

func registerTypes(L *lua.LState) {
	pmt := L.NewTypeMetatable(pageTypeName)
	L.SetField(pmt, "__index", L.SetFuncs(L.NewTable(), pageMethods))
	bmt := L.NewTypeMetatable(blockTypeName)
	L.SetField(bmt, "__index", L.SetFuncs(L.NewTable(), blockMethods))
}

func wrapPage(L *lua.LState, p *policy.PageScope) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = p
	L.SetMetatable(ud, L.GetTypeMetatable(pageTypeName))
	return ud
}

func wrapBlock(L *lua.LState, b *policy.BlockScope) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = b
	L.SetMetatable(ud, L.GetTypeMetatable(blockTypeName))
	return ud
}

func checkPage(L *lua.LState) *policy.PageScope {
	ud := L.CheckUserData(1)
	if p, ok := ud.Value.(*policy.PageScope); ok {
		return p
	}
	L.ArgError(1, "page expected")
	return nil
}

func checkBlock(L *lua.LState) *policy.BlockScope {
	ud := L.CheckUserData(1)
	if b, ok := ud.Value.(*policy.BlockScope); ok {
		return b
	}
	L.ArgError(1, "block expected")
	return nil
}

var pageMethods = map[string]lua.LGFunction{
	"is_journal": func(L *lua.LState) int {
		L.Push(lua.LBool(checkPage(L).IsJournal()))
		return 1
	},
	"title": func(L *lua.LState) int {
		L.Push(lua.LString(checkPage(L).Title()))
		return 1
	},
	"set_title": func(L *lua.LState) int {
		checkPage(L).SetTitle(L.CheckString(2))
		return 0
	},
	"title_segments": func(L *lua.LState) int {
		L.Push(stringsToTable(L, checkPage(L).TitleSegments()))
		return 1
	},
	"pop_title_segment": func(L *lua.LState) int {
		L.Push(lua.LString(checkPage(L).PopTitleSegment()))
		return 1
	},
	"url_base": func(L *lua.LState) int {
		L.Push(lua.LString(checkPage(L).URLBase()))
		return 1
	},
	"set_url_base": func(L *lua.LState) int {
		checkPage(L).SetURLBase(L.CheckString(2))
		return 0
	},
	"path_base": func(L *lua.LState) int {
		L.Push(lua.LString(checkPage(L).PathBase()))
		return 1
	},
	"set_path_base": func(L *lua.LState) int {
		checkPage(L).SetPathBase(L.CheckString(2))
		return 0
	},
	"path_name": func(L *lua.LState) int {
		L.Push(lua.LString(checkPage(L).PathName()))
		return 1
	},
	"set_path_name": func(L *lua.LState) int {
		checkPage(L).SetPathName(L.CheckString(2))
		return 0
	},
	"include": func(L *lua.LState) int {
		L.Push(lua.LBool(checkPage(L).Include()))
		return 1
	},
	"set_include": func(L *lua.LState) int {
		checkPage(L).SetInclude(L.CheckBool(2))
		return 0
	},
	"allow_embedding": func(L *lua.LState) int {
		L.Push(lua.LString(checkPage(L).AllowEmbedding().String()))
		return 1
	},
	"set_allow_embedding": func(L *lua.LState) int {
		checkPage(L).SetAllowEmbedding(graph.AllowEmbedFrom(L.CheckString(2)))
		return 0
	},
	"tags": func(L *lua.LState) int {
		L.Push(stringsToTable(L, checkPage(L).Tags()))
		return 1
	},
	"add_tag": func(L *lua.LState) int {
		checkPage(L).AddTags(L.CheckString(2))
		return 0
	},
	"add_tags": func(L *lua.LState) int {
		checkPage(L).AddTags(tableToSlice(L.CheckTable(2))...)
		return 0
	},
	"remove_tag": func(L *lua.LState) int {
		checkPage(L).RemoveTag(L.CheckString(2))
		return 0
	},
	"attr_first": func(L *lua.LState) int {
		L.Push(lua.LString(checkPage(L).AttrFirst(L.CheckString(2))))
		return 1
	},
	"each_block": func(L *lua.LState) int {
		p := checkPage(L)
		maxDepth := int(L.CheckNumber(2))
		fn := L.CheckFunction(3)
		err := p.EachBlock(maxDepth, func(b *policy.BlockScope, depth int) error {
			return L.CallByParam(
				lua.P{Fn: fn, NRet: 0, Protect: true},
				wrapBlock(L, b), lua.LNumber(depth))
		})
		if err != nil {
			L.RaiseError("each_block: %s", err)
		}
		return 0
	},
}

var blockMethods = map[string]lua.LGFunction{
	"id": func(L *lua.LState) int {
		L.Push(lua.LString(checkBlock(L).ID()))
		return 1
	},
	"is_page_root": func(L *lua.LState) int {
		L.Push(lua.LBool(checkBlock(L).IsPageRoot()))
		return 1
	},
	"contents": func(L *lua.LState) int {
		L.Push(lua.LString(checkBlock(L).Contents()))
		return 1
	},
	"has_prefix": func(L *lua.LState) int {
		L.Push(lua.LBool(checkBlock(L).HasPrefix(L.CheckString(2))))
		return 1
	},
	"is": func(L *lua.LState) int {
		L.Push(lua.LBool(checkBlock(L).ContentIs(L.CheckString(2))))
		return 1
	},
	"tags": func(L *lua.LState) int {
		L.Push(stringsToTable(L, checkBlock(L).Tags()))
		return 1
	},
	"has_tag": func(L *lua.LState) int {
		L.Push(lua.LBool(checkBlock(L).HasTag(L.CheckString(2))))
		return 1
	},
	"add_tags": func(L *lua.LState) int {
		checkBlock(L).AddTags(tableToSlice(L.CheckTable(2))...)
		return 0
	},
	"attr_first": func(L *lua.LState) int {
		L.Push(lua.LString(checkBlock(L).AttrFirst(L.CheckString(2))))
		return 1
	},
	"view_type": func(L *lua.LState) int {
		L.Push(lua.LString(checkBlock(L).ViewType().String()))
		return 1
	},
	"set_view_type": func(L *lua.LState) int {
		checkBlock(L).SetViewType(graph.ViewTypeFrom(L.CheckString(2)))
		return 0
	},
	"heading": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkBlock(L).Heading()))
		return 1
	},
	"set_heading": func(L *lua.LState) int {
		checkBlock(L).SetHeading(int(L.CheckNumber(2)))
		return 0
	},
	"include": func(L *lua.LState) int {
		L.Push(lua.LString(checkBlock(L).Include().String()))
		return 1
	},
	"set_include": func(L *lua.LState) int {
		checkBlock(L).SetInclude(graph.IncludeFrom(L.CheckString(2)))
		return 0
	},
}

func stringsToTable(L *lua.LState, ss []string) *lua.LTable {
	t := L.NewTable()
	for _, s := range ss {
		t.Append(lua.LString(s))
	}
	return t
}

func tableToSlice(t *lua.LTable) []string {
	var out []string
	t.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			out = append(out, string(s))
		}
	})
	return out
}

func tableToMap(t *lua.LTable) map[string]string {
	out := make(map[string]string)
	t.ForEach(func(k, v lua.LValue) {
		ks, kok := k.(lua.LString)
		vs, vok := v.(lua.LString)
		if kok && vok {
			out[string(ks)] = string(vs)
		}
	})
	return out
}
