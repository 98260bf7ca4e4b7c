// Package mcp exposes the question pipeline as Model Context Protocol tools.
//
// Tools are registered on a go-sdk server and served over stdio. Every tool
// call is timed and counted, and tool metadata is kept in a Catalog so
// clients can discover tools with tool_search.
package mcp
