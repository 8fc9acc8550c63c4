package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/models"
	"github.com/ragstack/ragchat/internal/vectorstore"
)

type fakeDocs struct {
	doc      *models.Document
	statuses []string
}

func (f *fakeDocs) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, errors.New("document not found")
	}
	return f.doc, nil
}

func (f *fakeDocs) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeFiles struct {
	data map[string][]byte
}

func (f *fakeFiles) Load(ctx context.Context, url string) ([]byte, error) {
	if d, ok := f.data[url]; ok {
		return d, nil
	}
	return nil, errors.New("not found")
}

type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) Text(fileType string, raw []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return string(raw), nil
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 0, 1}, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

type fakeChunkStore struct {
	replaced map[uuid.UUID][]vectorstore.Chunk
	err      error
}

func (f *fakeChunkStore) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []vectorstore.Chunk) error {
	if f.err != nil {
		return f.err
	}
	if f.replaced == nil {
		f.replaced = make(map[uuid.UUID][]vectorstore.Chunk)
	}
	f.replaced[documentID] = chunks
	return nil
}

func (f *fakeChunkStore) SimilaritySearch(ctx context.Context, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (f *fakeChunkStore) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	delete(f.replaced, documentID)
	return nil
}

func testPipeline(docs *fakeDocs, files *fakeFiles, ex *fakeExtractor, em *fakeEmbedder, cs *fakeChunkStore) *Pipeline {
	cfg := config.IngestConfig{ChunkSize: 100, ChunkOverlap: 20, MaxUploadMB: 1, ChunkContentCap: 5000}
	return NewPipeline(docs, files, ex, em, cs, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testDoc(url string) *models.Document {
	return &models.Document{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Name:     "notes.txt",
		FileType: models.FileTypeTXT,
		URL:      url,
		Status:   models.DocStatusProcessing,
	}
}

func TestProcessDocumentHappyPath(t *testing.T) {
	doc := testDoc("/media/t/notes.txt")
	docs := &fakeDocs{doc: doc}
	files := &fakeFiles{data: map[string][]byte{doc.URL: []byte(strings.Repeat("lorem ipsum ", 30))}}
	em := &fakeEmbedder{}
	cs := &fakeChunkStore{}

	p := testPipeline(docs, files, &fakeExtractor{}, em, cs)
	require.NoError(t, p.ProcessDocument(context.Background(), doc.ID))

	assert.Equal(t, []string{models.DocStatusProcessing, models.DocStatusReady}, docs.statuses)

	chunks := cs.replaced[doc.ID]
	require.NotEmpty(t, chunks)
	assert.Equal(t, len(chunks), em.calls, "one embedding call per chunk")
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.NotEmpty(t, c.Content)
		assert.Len(t, c.Embedding, 3)
	}
}

func TestProcessDocumentUnknownID(t *testing.T) {
	p := testPipeline(&fakeDocs{}, &fakeFiles{}, &fakeExtractor{}, &fakeEmbedder{}, &fakeChunkStore{})
	err := p.ProcessDocument(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestProcessDocumentExtractFailureMarksFailed(t *testing.T) {
	doc := testDoc("/media/t/bad.txt")
	docs := &fakeDocs{doc: doc}
	files := &fakeFiles{data: map[string][]byte{doc.URL: []byte("raw")}}

	p := testPipeline(docs, files, &fakeExtractor{err: errors.New("corrupt file")}, &fakeEmbedder{}, &fakeChunkStore{})
	err := p.ProcessDocument(context.Background(), doc.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt file")
	assert.Equal(t, []string{models.DocStatusProcessing, models.DocStatusFailed}, docs.statuses)
}

func TestProcessDocumentEmbedFailureMarksFailed(t *testing.T) {
	doc := testDoc("/media/t/notes.txt")
	docs := &fakeDocs{doc: doc}
	files := &fakeFiles{data: map[string][]byte{doc.URL: []byte("some text to embed")}}
	cs := &fakeChunkStore{}

	p := testPipeline(docs, files, &fakeExtractor{}, &fakeEmbedder{err: errors.New("quota exceeded")}, cs)
	err := p.ProcessDocument(context.Background(), doc.ID)
	require.Error(t, err)
	assert.Equal(t, []string{models.DocStatusProcessing, models.DocStatusFailed}, docs.statuses)
	assert.Empty(t, cs.replaced, "nothing persisted on failure")
}

func TestProcessDocumentEmptyTextFails(t *testing.T) {
	doc := testDoc("/media/t/blank.txt")
	docs := &fakeDocs{doc: doc}
	files := &fakeFiles{data: map[string][]byte{doc.URL: []byte("   \n\t  ")}}

	p := testPipeline(docs, files, &fakeExtractor{}, &fakeEmbedder{}, &fakeChunkStore{})
	err := p.ProcessDocument(context.Background(), doc.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no extractable text")
}

func TestProcessDocumentReprocessReplacesChunks(t *testing.T) {
	doc := testDoc("/media/t/notes.txt")
	docs := &fakeDocs{doc: doc}
	files := &fakeFiles{data: map[string][]byte{doc.URL: []byte(strings.Repeat("first version ", 20))}}
	cs := &fakeChunkStore{}

	p := testPipeline(docs, files, &fakeExtractor{}, &fakeEmbedder{}, cs)
	require.NoError(t, p.ProcessDocument(context.Background(), doc.ID))
	firstLen := len(cs.replaced[doc.ID])

	files.data[doc.URL] = []byte("tiny")
	require.NoError(t, p.ProcessDocument(context.Background(), doc.ID))

	assert.Len(t, cs.replaced[doc.ID], 1)
	assert.Greater(t, firstLen, 1)
}
