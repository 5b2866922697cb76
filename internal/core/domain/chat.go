package domain

// ContextSummary describes which chunks were judged relevant for a turn,
// grouped by selected document. It is emitted to the client before any
// model output. Every selected document appears, with an empty
// RelevantContent list when nothing relevant was found in it.
type ContextSummary struct {
	// TotalDocuments is the number of documents selected for the turn.
	TotalDocuments int `json:"total_documents"`

	// TotalRelevantInfo is the number of chunks that survived reranking.
	TotalRelevantInfo int `json:"total_relevant_info"`

	// Documents lists the per-document relevant content.
	Documents []DocumentContext `json:"documents"`
}

// DocumentContext is the relevant content drawn from one selected document.
type DocumentContext struct {
	DocumentID      string   `json:"document_id"`
	DocumentName    string   `json:"document_name"`
	RelevantContent []string `json:"relevant_content"`
}
