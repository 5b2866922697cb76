package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meridianhq/ragpipe/internal/core/domain"
)

// documentResponse is the wire form of a document record.
type documentResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	UploadedAt  string `json:"uploaded_at"`
}

func toDocumentResponse(doc domain.Document) documentResponse {
	return documentResponse{
		ID:          doc.ID,
		DisplayName: doc.DisplayName,
		UploadedAt:  doc.UploadedAt.UTC().Format(time.RFC3339),
	}
}

// handleUpload accepts a multipart file, stores blob and metadata, and
// ingests the text into the vector index. Duplicate display names are
// rejected so the same file cannot be uploaded twice.
func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("file field is required"))
		return
	}

	exists, err := s.docs.ExistsDisplayName(c.Request.Context(), header.Filename)
	if err != nil {
		s.log.WithError(err).Error("display name check failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	if exists {
		c.JSON(http.StatusBadRequest,
			errorResponse(fmt.Sprintf("document %q has already been uploaded", header.Filename)))
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("cannot read uploaded file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("cannot read uploaded file"))
		return
	}

	ctx := c.Request.Context()
	ref, err := s.files.Save(ctx, data, filepath.Ext(header.Filename))
	if err != nil {
		s.log.WithError(err).Error("blob save failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	doc := domain.Document{
		ID:          uuid.NewString(),
		StoredName:  ref,
		DisplayName: header.Filename,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		s.log.WithError(err).Error("document record creation failed")
		s.discardUpload(c, doc, false)
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	if err := s.pipeline.Ingest(ctx, doc.ID, string(data)); err != nil {
		s.log.WithError(err).WithField("document_id", doc.ID).Error("ingestion failed")
		s.discardUpload(c, doc, true)
		c.JSON(http.StatusInternalServerError, errorResponse("document ingestion failed"))
		return
	}

	s.log.WithFields(map[string]any{
		"document_id":  doc.ID,
		"display_name": doc.DisplayName,
		"bytes":        len(data),
	}).Info("document uploaded")
	c.JSON(http.StatusOK, gin.H{"status": "success", "doc_id": doc.ID})
}

// discardUpload rolls back a half-finished upload so a retry is not
// blocked by the duplicate-name check.
func (s *Server) discardUpload(c *gin.Context, doc domain.Document, recordCreated bool) {
	ctx := c.Request.Context()
	if err := s.files.Delete(ctx, doc.StoredName); err != nil {
		s.log.WithError(err).Warn("upload rollback: blob delete failed")
	}
	if recordCreated {
		if err := s.docs.Delete(ctx, doc.ID); err != nil {
			s.log.WithError(err).Warn("upload rollback: record delete failed")
		}
	}
	if err := s.pipeline.Purge(ctx, doc.ID); err != nil {
		s.log.WithError(err).Warn("upload rollback: collection purge failed")
	}
}

// handleList returns all documents, most recently uploaded first.
func (s *Server) handleList(c *gin.Context) {
	docs, err := s.docs.List(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("document listing failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	c.JSON(http.StatusOK, out)
}

// handleDownload streams the original uploaded bytes back under the
// original filename.
func (s *Server) handleDownload(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := s.docs.Get(ctx, c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse("document not found"))
		return
	}
	if err != nil {
		s.log.WithError(err).Error("document lookup failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	data, err := s.files.Read(ctx, doc.StoredName)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse("file not found"))
		return
	}
	if err != nil {
		s.log.WithError(err).Error("blob read failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.DisplayName))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// handleDelete removes the document's metadata, blob and vector
// collection.
func (s *Server) handleDelete(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	doc, err := s.docs.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse("document not found"))
		return
	}
	if err != nil {
		s.log.WithError(err).Error("document lookup failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	if err := s.pipeline.Purge(ctx, id); err != nil {
		s.log.WithError(err).Error("collection purge failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	if err := s.files.Delete(ctx, doc.StoredName); err != nil {
		s.log.WithError(err).Warn("blob delete failed")
	}
	if err := s.docs.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.WithError(err).Error("record delete failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	s.log.WithField("document_id", id).Info("document deleted")
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "document deleted"})
}

// searchRequest is the one-shot search request body.
type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// searchResult is one entry in the search response.
type searchResult struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	ChunkID string  `json:"chunk_id"`
}

// handleSearch runs retrieval plus reranking over a single document.
func (s *Server) handleSearch(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	doc, err := s.docs.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse("document not found"))
		return
	}
	if err != nil {
		s.log.WithError(err).Error("document lookup failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		c.JSON(http.StatusBadRequest, errorResponse("query is required"))
		return
	}

	candidates, err := s.pipeline.Search(ctx, id, req.Query, req.TopK)
	if err != nil {
		s.log.WithError(err).WithField("document_id", id).Error("search failed")
		c.JSON(http.StatusInternalServerError, errorResponse("search failed"))
		return
	}

	results := make([]searchResult, 0, len(candidates))
	for _, cand := range candidates {
		score := cand.Score
		if cand.Reranked {
			score = cand.RerankScore
		}
		results = append(results, searchResult{
			Content: cand.Content,
			Score:   score,
			ChunkID: cand.ChunkID,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"data":          results,
		"document_name": doc.DisplayName,
	})
}
