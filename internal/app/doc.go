// Package app wires lexivoice's components from configuration.
//
// New builds everything a transport needs: the embedder, the index
// registry, the translator chain, the synthesizer, the optional speaker,
// the query log and the pipeline over them. Transports (HTTP, MCP, the
// CLI) receive an *App and never construct components themselves.
//
// Close releases resources in reverse construction order.
package app
