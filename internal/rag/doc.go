// Package rag holds the core types of the character answer pipeline.
//
// A character's knowledge base is a collection of question/answer pairs
// indexed by vector in an external store. This package defines:
//   - the fixed-shape ReferenceDocument read back from a collection
//   - the QueryVector produced by an embedding model
//   - the VectorStore contract every storage backend implements
//
// Services that sequence these pieces live under services/.
package rag
