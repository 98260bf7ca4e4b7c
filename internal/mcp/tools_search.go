package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultSearchLimit = 5

type toolSearchInput struct {
	Query    string `json:"query" jsonschema:"Regex pattern or search text matched against tool names, descriptions and keywords"`
	Category string `json:"category,omitempty" jsonschema:"Restrict results to one category (legal, catalog, search)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 5)"`
}

type toolSearchOutput struct {
	Query      string  `json:"query"`
	Results    []Match `json:"results"`
	Count      int     `json:"count"`
	TotalTools int     `json:"total_tools"`
}

func (s *Server) registerSearchTools() {
	addTool(s, ToolInfo{
		Name:        "tool_search",
		Description: "Search the available tools by name, description or keyword.",
		Kind:        KindSearch,
		Keywords:    []string{"discover", "find", "help"},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args toolSearchInput) (*mcp.CallToolResult, toolSearchOutput, error) {
		if strings.TrimSpace(args.Query) == "" {
			return nil, toolSearchOutput{}, fmt.Errorf("query is required")
		}
		limit := args.Limit
		if limit <= 0 {
			limit = defaultSearchLimit
		}

		results := s.catalog.Find(args.Query, ToolKind(args.Category))
		if len(results) > limit {
			results = results[:limit]
		}
		if results == nil {
			results = []Match{}
		}

		names := make([]string, len(results))
		for i, r := range results {
			names[i] = r.Tool.Name
		}
		text := fmt.Sprintf("No tools found matching: %s", args.Query)
		if len(names) > 0 {
			text = fmt.Sprintf("Found %d tool(s) for query '%s': %s", len(names), args.Query, strings.Join(names, ", "))
		}

		return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, toolSearchOutput{
				Query:      args.Query,
				Results:    results,
				Count:      len(results),
				TotalTools: s.catalog.Len(),
			}, nil
	})
}
