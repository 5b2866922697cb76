// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): embedding and chat providers, the vector
// index, the rerank service, and the metadata/file stores.
package driven
