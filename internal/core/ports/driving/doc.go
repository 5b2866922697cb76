// Package driving provides interfaces for inbound adapters
// (primary ports): the document pipeline and the streaming chat session.
package driving
