package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashwinyue/rag-chat/internal/config"
	"github.com/ashwinyue/rag-chat/internal/service/types"
	estypes "github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newESTestCollection(t *testing.T, handler http.HandlerFunc) *ESCollection {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewESClient(&config.ElasticConfig{Host: srv.URL})
	require.NoError(t, err)
	return NewESCollection(client, "rag_chat_documents")
}

func TestESCollection_Count(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    int64
		wantErr bool
	}{
		{"ok", http.StatusOK, `{"count":3}`, 3, false},
		{"missing index", http.StatusNotFound, `{"error":{"type":"index_not_found_exception"},"status":404}`, 0, false},
		{"server error", http.StatusInternalServerError, `{"error":"boom","status":500}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newESTestCollection(t, func(w http.ResponseWriter, r *http.Request) {
				assert.True(t, strings.HasSuffix(r.URL.Path, "/rag_chat_documents/_count"), r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			n, err := c.Count(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrVectorIndex)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestESCollection_DeleteByDocument(t *testing.T) {
	var gotBody map[string]any
	c := newESTestCollection(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/rag_chat_documents/_delete_by_query"), r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("refresh"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"deleted":2}`))
	})

	require.NoError(t, c.DeleteByDocument(context.Background(), "doc-1"))
	assert.Equal(t, map[string]any{"query": map[string]any{"term": map[string]any{"doc_id": "doc-1"}}}, gotBody)
}

func TestESCollection_DeleteMissingIndex(t *testing.T) {
	c := newESTestCollection(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":404}`))
	})
	assert.NoError(t, c.DeleteByDocument(context.Background(), "doc-1"))
}

func TestDocumentToFields(t *testing.T) {
	doc := newChunkDocument("doc-1", "a.pdf", 2, "chunk text")
	fields, err := documentToFields(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "chunk text", fields["content"].Value)
	assert.Equal(t, "content_vector", fields["content"].EmbedKey)
	assert.Equal(t, "doc-1", fields["doc_id"].Value)
	assert.Equal(t, "a.pdf", fields["filename"].Value)
	assert.Equal(t, 2, fields["chunk_index"].Value)
	assert.Empty(t, fields["doc_id"].EmbedKey)
}

func TestParseHit(t *testing.T) {
	id := "doc-1:0"
	score := estypes.Float64(1.8)
	hit := estypes.Hit{
		Id_:     &id,
		Score_:  &score,
		Source_: json.RawMessage(`{"content":"hello","doc_id":"doc-1","filename":"a.txt","chunk_index":0}`),
	}

	doc, err := parseHit(context.Background(), hit)
	require.NoError(t, err)
	assert.Equal(t, "doc-1:0", doc.ID)
	assert.Equal(t, "hello", doc.Content)
	assert.Equal(t, "a.txt", metaString(doc, MetaFilename))
	assert.InDelta(t, 1.8, doc.Score(), 1e-9)
}
