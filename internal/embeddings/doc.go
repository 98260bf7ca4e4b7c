// Package embeddings maps text to unit-normalized vectors.
//
// An Embedder owns exactly one Backend for the process lifetime. Corpus
// passages and user queries go through the same preprocessing and
// normalization path, so index-time and query-time vectors are comparable.
//
// Backends:
//   - fastembed: local ONNX models via fastembed-go (requires cgo)
//   - tei: HuggingFace text-embeddings-inference over HTTP
//   - hash: deterministic feature hashing, for tests and offline use
package embeddings
