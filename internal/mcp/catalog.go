package mcp

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// ToolKind groups tools for discovery.
type ToolKind string

const (
	KindLegal   ToolKind = "legal"
	KindCatalog ToolKind = "catalog"
	KindSearch  ToolKind = "search"
)

// ToolInfo is the discoverable description of one tool.
type ToolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Kind        ToolKind `json:"category"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Match is a tool_search hit. Score is 3 for an exact name, 2 for a name
// match and 1 for a description or keyword match.
type Match struct {
	Tool   ToolInfo `json:"tool"`
	Score  int      `json:"score"`
	Reason string   `json:"match_reason"`
}

// Catalog holds the tools a server exposes. It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]ToolInfo
}

func NewCatalog() *Catalog {
	return &Catalog{byName: map[string]ToolInfo{}}
}

// Add stores info under its name, replacing an earlier entry. Unnamed
// tools are rejected.
func (c *Catalog) Add(info ToolInfo) bool {
	if info.Name == "" {
		return false
	}
	c.mu.Lock()
	c.byName[info.Name] = info
	c.mu.Unlock()
	return true
}

func (c *Catalog) Lookup(name string) (ToolInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.byName[name]
	return info, ok
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName)
}

// Tools returns the catalog ordered by name, optionally limited to kind.
func (c *Catalog) Tools(kind ToolKind) []ToolInfo {
	c.mu.RLock()
	out := make([]ToolInfo, 0, len(c.byName))
	for _, info := range c.byName {
		if kind == "" || info.Kind == kind {
			out = append(out, info)
		}
	}
	c.mu.RUnlock()
	slices.SortFunc(out, func(a, b ToolInfo) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Find ranks tools against query. The query is tried as a case-insensitive
// regular expression and as a plain substring; an invalid expression only
// disables the former.
func (c *Catalog) Find(query string, kind ToolKind) []Match {
	if query == "" {
		return nil
	}
	needle := strings.ToLower(query)
	re, _ := regexp.Compile("(?i)" + query)
	hit := func(s string) bool {
		return strings.Contains(strings.ToLower(s), needle) || (re != nil && re.MatchString(s))
	}

	var found []Match
	for _, info := range c.Tools(kind) {
		m := Match{Tool: info}
		switch {
		case strings.EqualFold(info.Name, query):
			m.Score, m.Reason = 3, "exact name match"
		case hit(info.Name):
			m.Score, m.Reason = 2, "name matches query"
		case hit(info.Description):
			m.Score, m.Reason = 1, "description matches query"
		case slices.ContainsFunc(info.Keywords, hit):
			m.Score, m.Reason = 1, "keyword matches query"
		default:
			continue
		}
		found = append(found, m)
	}
	slices.SortStableFunc(found, func(a, b Match) int { return cmp.Compare(b.Score, a.Score) })
	return found
}
