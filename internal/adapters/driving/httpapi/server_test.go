package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driving"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeDocStore struct {
	docs map[string]domain.Document
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[string]domain.Document)}
}

func (f *fakeDocStore) Create(_ context.Context, doc domain.Document) error {
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocStore) List(context.Context) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (f *fakeDocStore) Get(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return &doc, nil
}

func (f *fakeDocStore) ExistsDisplayName(_ context.Context, name string) (bool, error) {
	for _, doc := range f.docs {
		if doc.DisplayName == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDocStore) Delete(_ context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocStore) Close() error { return nil }

type fakeFileStore struct {
	blobs map[string][]byte
	next  int
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{blobs: make(map[string][]byte)}
}

func (f *fakeFileStore) Save(_ context.Context, data []byte, ext string) (string, error) {
	f.next++
	ref := fmt.Sprintf("blob-%d%s", f.next, ext)
	f.blobs[ref] = data
	return ref, nil
}

func (f *fakeFileStore) Read(_ context.Context, ref string) ([]byte, error) {
	data, ok := f.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", ref, domain.ErrNotFound)
	}
	return data, nil
}

func (f *fakeFileStore) Delete(_ context.Context, ref string) error {
	delete(f.blobs, ref)
	return nil
}

type fakePipeline struct {
	ingested  map[string]string
	purged    []string
	ingestErr error
	results   []domain.Candidate
	searchErr error
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{ingested: make(map[string]string)}
}

func (f *fakePipeline) Ingest(_ context.Context, documentID, text string) error {
	if f.ingestErr != nil {
		return f.ingestErr
	}
	f.ingested[documentID] = text
	return nil
}

func (f *fakePipeline) Purge(_ context.Context, documentID string) error {
	f.purged = append(f.purged, documentID)
	return nil
}

func (f *fakePipeline) Search(context.Context, string, string, int) ([]domain.Candidate, error) {
	return f.results, f.searchErr
}

type fixture struct {
	server   *httptest.Server
	docs     *fakeDocStore
	files    *fakeFileStore
	pipeline *fakePipeline
}

func newFixture(t *testing.T, chat driving.ChatSession) *fixture {
	t.Helper()
	docs := newFakeDocStore()
	files := newFakeFileStore()
	pipeline := newFakePipeline()

	s := New(docs, files, pipeline, chat, quietLogger())
	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)

	return &fixture{server: server, docs: docs, files: files, pipeline: pipeline}
}

func uploadFile(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(url+"/api/documents", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestUploadIngestsDocument(t *testing.T) {
	fx := newFixture(t, nil)

	resp := uploadFile(t, fx.server.URL, "report.txt", "hello world")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		DocID  string `json:"doc_id"`
	}
	decodeJSON(t, resp, &body)
	assert.Equal(t, "success", body.Status)
	require.NotEmpty(t, body.DocID)

	assert.Equal(t, "hello world", fx.pipeline.ingested[body.DocID])
	doc, err := fx.docs.Get(context.Background(), body.DocID)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", doc.DisplayName)

	stored, err := fx.files.Read(context.Background(), doc.StoredName)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), stored)
}

func TestUploadRejectsDuplicateName(t *testing.T) {
	fx := newFixture(t, nil)

	resp := uploadFile(t, fx.server.URL, "report.txt", "first")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = uploadFile(t, fx.server.URL, "report.txt", "second")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
	}
	decodeJSON(t, resp, &body)
	assert.Equal(t, "error", body.Status)
}

func TestUploadRollsBackOnIngestFailure(t *testing.T) {
	fx := newFixture(t, nil)
	fx.pipeline.ingestErr = fmt.Errorf("embedding provider down")

	resp := uploadFile(t, fx.server.URL, "report.txt", "doomed")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()

	docs, err := fx.docs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs, "failed upload must not leave a metadata record")
	assert.Empty(t, fx.files.blobs, "failed upload must not leave a blob")

	// A retry with the same name must now succeed.
	fx.pipeline.ingestErr = nil
	resp = uploadFile(t, fx.server.URL, "report.txt", "retry")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestListDocuments(t *testing.T) {
	fx := newFixture(t, nil)

	for _, name := range []string{"a.txt", "b.txt"} {
		resp := uploadFile(t, fx.server.URL, name, "content of "+name)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(fx.server.URL + "/api/documents")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var docs []documentResponse
	decodeJSON(t, resp, &docs)
	assert.Len(t, docs, 2)
}

func TestDownloadReturnsOriginalBytes(t *testing.T) {
	fx := newFixture(t, nil)

	resp := uploadFile(t, fx.server.URL, "report.txt", "original bytes")
	var uploaded struct {
		DocID string `json:"doc_id"`
	}
	decodeJSON(t, resp, &uploaded)

	resp, err := http.Get(fx.server.URL + "/api/documents/" + uploaded.DocID + "/download")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "report.txt")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "original bytes", string(data))
}

func TestDeleteRemovesEverything(t *testing.T) {
	fx := newFixture(t, nil)

	resp := uploadFile(t, fx.server.URL, "report.txt", "bye")
	var uploaded struct {
		DocID string `json:"doc_id"`
	}
	decodeJSON(t, resp, &uploaded)

	req, err := http.NewRequest(http.MethodDelete, fx.server.URL+"/api/documents/"+uploaded.DocID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Contains(t, fx.pipeline.purged, uploaded.DocID)
	assert.Empty(t, fx.files.blobs)
	_, err = fx.docs.Get(context.Background(), uploaded.DocID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteUnknownDocumentReturns404(t *testing.T) {
	fx := newFixture(t, nil)

	req, err := http.NewRequest(http.MethodDelete, fx.server.URL+"/api/documents/ghost", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchReturnsRankedResults(t *testing.T) {
	fx := newFixture(t, nil)

	resp := uploadFile(t, fx.server.URL, "report.txt", "content")
	var uploaded struct {
		DocID string `json:"doc_id"`
	}
	decodeJSON(t, resp, &uploaded)

	fx.pipeline.results = []domain.Candidate{
		{ChunkID: "d_0", Content: "best match", Score: 0.4, RerankScore: 0.95, Reranked: true},
		{ChunkID: "d_1", Content: "coarse only", Score: 0.6},
	}

	resp, err := http.Post(fx.server.URL+"/api/documents/"+uploaded.DocID+"/search",
		"application/json", bytes.NewBufferString(`{"query":"match"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status       string         `json:"status"`
		Data         []searchResult `json:"data"`
		DocumentName string         `json:"document_name"`
	}
	decodeJSON(t, resp, &body)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "report.txt", body.DocumentName)
	require.Len(t, body.Data, 2)
	assert.Equal(t, 0.95, body.Data[0].Score, "reranked candidates expose the rerank score")
	assert.Equal(t, 0.6, body.Data[1].Score)
}

func TestSearchRequiresQuery(t *testing.T) {
	fx := newFixture(t, nil)

	resp := uploadFile(t, fx.server.URL, "report.txt", "content")
	var uploaded struct {
		DocID string `json:"doc_id"`
	}
	decodeJSON(t, resp, &uploaded)

	resp, err := http.Post(fx.server.URL+"/api/documents/"+uploaded.DocID+"/search",
		"application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchUnknownDocumentReturns404(t *testing.T) {
	fx := newFixture(t, nil)

	resp, err := http.Post(fx.server.URL+"/api/documents/ghost/search",
		"application/json", bytes.NewBufferString(`{"query":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
