package document

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashwinyue/rag-chat/internal/model"
	"github.com/ashwinyue/rag-chat/internal/repository"
	"github.com/ashwinyue/rag-chat/internal/service/file"
	"github.com/ashwinyue/rag-chat/internal/service/knowledge"
	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/ashwinyue/rag-chat/internal/service/vectorstore"
	"github.com/ashwinyue/rag-chat/internal/testutil"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDocRepo 内存版 DocumentRepository
type fakeDocRepo struct {
	mu        sync.Mutex
	docs      map[string]*model.Document
	upsertErr error
	clock     time.Time
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: make(map[string]*model.Document), clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *fakeDocRepo) List(_ context.Context) ([]*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Document, 0, len(r.docs))
	for _, d := range r.docs {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeDocRepo) Get(_ context.Context, id string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (r *fakeDocRepo) Upsert(_ context.Context, doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.clock = r.clock.Add(time.Minute)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.clock
	}
	doc.UpdatedAt = r.clock
	c := *doc
	r.docs[doc.ID] = &c
	return nil
}

func (r *fakeDocRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

func (r *fakeDocRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

// flakyStorage 可注入保存失败的存储
type flakyStorage struct {
	file.Storage
	saveErr   error
	deleteErr error
}

func (s *flakyStorage) Delete(ctx context.Context, storedName string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Storage.Delete(ctx, storedName)
}

func (s *flakyStorage) SaveBytes(ctx context.Context, docID, ext string, content []byte) (*file.StoredDocument, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	return s.Storage.SaveBytes(ctx, docID, ext, content)
}

// flakyEmbedder failNext 置位后下一次调用失败
type flakyEmbedder struct {
	*testutil.FakeEmbedder
	failNext atomic.Bool
	failAll  atomic.Bool
}

func (e *flakyEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if e.failAll.Load() || e.failNext.CompareAndSwap(true, false) {
		return nil, errors.New("embedding backend down")
	}
	return e.FakeEmbedder.EmbedStrings(ctx, texts, opts...)
}

type fixture struct {
	svc      *Service
	repo     *fakeDocRepo
	storage  *flakyStorage
	mem      *vectorstore.MemoryCollection
	embedder *flakyEmbedder
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	local, err := file.NewLocalStorage(dir)
	require.NoError(t, err)
	storage := &flakyStorage{Storage: local}

	parser, err := knowledge.NewDocumentParser(ctx)
	require.NoError(t, err)
	chunker, err := knowledge.NewTextChunker(ctx, knowledge.DefaultChunkSize, knowledge.DefaultChunkOverlap)
	require.NoError(t, err)

	emb := &flakyEmbedder{FakeEmbedder: testutil.NewFakeEmbedder()}
	resolver := vectorstore.NewResolver([]vectorstore.Candidate{{
		Name:  "fake",
		Build: func(context.Context) (embedding.Embedder, error) { return emb, nil },
	}}, time.Second)
	mem := vectorstore.NewMemoryCollection()

	repo := newFakeDocRepo()
	svc := NewService(repo, parser, chunker, storage, vectorstore.NewIndex(mem, resolver), 1)

	return &fixture{svc: svc, repo: repo, storage: storage, mem: mem, embedder: emb, dir: dir}
}

func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func longText() string {
	return strings.Repeat(testutil.RefundPolicy+" ", 12) + "\n\n" +
		strings.Repeat(testutil.WarrantyPolicy+" ", 12) + "\n\n" +
		strings.Repeat(testutil.ShippingPolicy+" ", 12)
}

func chunkIDs(docID string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = vectorstore.ChunkID(docID, i)
	}
	sort.Strings(ids)
	return ids
}

// ========== Upload ==========

func TestUpload_MultiChunkText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, Upload{Filename: " policies.txt ", Content: []byte(longText())})
	require.NoError(t, err)

	assert.Equal(t, "policies.txt", doc.OriginalName)
	assert.Equal(t, "txt", doc.FileType)
	assert.Equal(t, doc.ID+".txt", doc.StoredName)
	assert.Equal(t, int64(len(longText())), doc.SizeBytes)
	assert.GreaterOrEqual(t, doc.ChunkCount, 3)

	assert.Equal(t, chunkIDs(doc.ID, doc.ChunkCount), f.mem.IDs())
	assert.Equal(t, []string{doc.StoredName}, f.storedFiles(t))

	stored, err := f.svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ChunkCount, stored.ChunkCount)
}

func TestUpload_Validation(t *testing.T) {
	f := newFixture(t)
	oversize := make([]byte, 1024*1024+1)
	for i := range oversize {
		oversize[i] = 'a'
	}

	tests := []struct {
		name    string
		upload  Upload
		wantMsg string
	}{
		{"missing filename", Upload{Filename: "  ", Content: []byte("x")}, "Missing filename."},
		{"unsupported", Upload{Filename: "tool.exe", Content: []byte("MZ")}, "Unsupported file type '.exe'. Allowed: PDF, DOCX, TXT, MD, HTML."},
		{"no extension", Upload{Filename: "README", Content: []byte("x")}, "Unsupported file type ''. Allowed: PDF, DOCX, TXT, MD, HTML."},
		{"empty", Upload{Filename: "a.txt"}, "Uploaded file is empty."},
		{"oversize", Upload{Filename: "big.txt", Content: oversize}, "File exceeds 1 MB limit."},
		{"whitespace only", Upload{Filename: "blank.md", Content: []byte(" \n\t ")}, "No readable text found in this file."},
		{"broken pdf", Upload{Filename: "scan.pdf", Content: []byte("not a pdf")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Upload(context.Background(), tt.upload)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrIngestion)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, types.Detail(err))
			} else {
				assert.True(t, strings.HasPrefix(types.Detail(err), "Unable to parse file: "), types.Detail(err))
				assert.ErrorIs(t, err, types.ErrParse)
			}
		})
	}

	assert.Empty(t, f.storedFiles(t))
	assert.Empty(t, f.mem.IDs())
	assert.Zero(t, f.repo.count())
}

func TestUpload_IndexFailureCompensates(t *testing.T) {
	f := newFixture(t)
	f.embedder.failAll.Store(true)

	_, err := f.svc.Upload(context.Background(), Upload{Filename: "refund.txt", Content: []byte(testutil.RefundPolicy)})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIngestion)
	assert.ErrorIs(t, err, types.ErrVectorIndex)
	assert.True(t, strings.HasPrefix(types.Detail(err), "Failed to index file: "), types.Detail(err))

	assert.Empty(t, f.storedFiles(t))
	assert.Empty(t, f.mem.IDs())
	assert.Zero(t, f.repo.count())
}

func TestUpload_RecordFailureCompensates(t *testing.T) {
	f := newFixture(t)
	f.repo.upsertErr = errors.New("connection reset")

	_, err := f.svc.Upload(context.Background(), Upload{Filename: "refund.txt", Content: []byte(testutil.RefundPolicy)})
	require.Error(t, err)
	assert.Equal(t, "Failed to index file: connection reset", types.Detail(err))

	assert.Empty(t, f.storedFiles(t))
	assert.Empty(t, f.mem.IDs())
}

func TestUpload_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.storage.saveErr = types.Errorf(types.ErrStorage, "bucket unavailable")

	_, err := f.svc.Upload(context.Background(), Upload{Filename: "refund.txt", Content: []byte(testutil.RefundPolicy)})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStorage)
	assert.Equal(t, "Storage error: bucket unavailable", types.Detail(err))
	assert.Empty(t, f.mem.IDs())
	assert.Zero(t, f.embedder.Calls())
}

// ========== Replace ==========

func TestReplace_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orig, err := f.svc.Upload(ctx, Upload{Filename: "policies.txt", Content: []byte(longText())})
	require.NoError(t, err)

	updated, err := f.svc.Replace(ctx, orig.ID, Upload{Filename: "warranty.md", Content: []byte(testutil.WarrantyPolicy)})
	require.NoError(t, err)

	assert.Equal(t, orig.ID, updated.ID)
	assert.Equal(t, "warranty.md", updated.OriginalName)
	assert.Equal(t, "md", updated.FileType)
	assert.Equal(t, orig.ID+".md", updated.StoredName)
	assert.Equal(t, 1, updated.ChunkCount)
	assert.Equal(t, orig.CreatedAt, updated.CreatedAt)

	assert.Equal(t, []string{orig.ID + ".md"}, f.storedFiles(t))
	assert.Equal(t, []string{vectorstore.ChunkID(orig.ID, 0)}, f.mem.IDs())

	hits, err := vectorstore.NewIndex(f.mem, staticResolver(f)).Retrieve(ctx, "warranty", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "warranty.md", hits[0].Filename)
}

func TestReplace_EmptyContentRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orig, err := f.svc.Upload(ctx, Upload{Filename: "refund.txt", Content: []byte(testutil.RefundPolicy)})
	require.NoError(t, err)
	idsBefore := f.mem.IDs()

	_, err = f.svc.Replace(ctx, orig.ID, Upload{Filename: "refund.txt", Content: []byte("   \n  ")})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIngestion)
	assert.Equal(t, "Failed to replace document: No readable text found in replacement file.", types.Detail(err))

	content, err := f.storage.ReadBytes(ctx, orig.StoredName)
	require.NoError(t, err)
	assert.Equal(t, testutil.RefundPolicy, string(content))
	assert.Equal(t, idsBefore, f.mem.IDs())

	row, err := f.svc.Get(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, orig.OriginalName, row.OriginalName)
	assert.Equal(t, orig.UpdatedAt, row.UpdatedAt)
}

func TestReplace_IndexFailureRestoresSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orig, err := f.svc.Upload(ctx, Upload{Filename: "refund.txt", Content: []byte(testutil.RefundPolicy)})
	require.NoError(t, err)

	f.embedder.failNext.Store(true)
	_, err = f.svc.Replace(ctx, orig.ID, Upload{Filename: "shipping.html", Content: []byte("<html><body><p>" + testutil.ShippingPolicy + "</p></body></html>")})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrVectorIndex)
	assert.True(t, strings.HasPrefix(types.Detail(err), "Failed to replace document: Embedding/indexing failed."), types.Detail(err))

	// 新文件已删除，旧文件和旧索引恢复
	assert.Equal(t, []string{orig.StoredName}, f.storedFiles(t))
	content, err := f.storage.ReadBytes(ctx, orig.StoredName)
	require.NoError(t, err)
	assert.Equal(t, testutil.RefundPolicy, string(content))
	assert.Equal(t, []string{vectorstore.ChunkID(orig.ID, 0)}, f.mem.IDs())

	hits, err := vectorstore.NewIndex(f.mem, staticResolver(f)).Retrieve(ctx, "refunds", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "refund.txt", hits[0].Filename)

	row, err := f.svc.Get(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "txt", row.FileType)
}

func TestReplace_SameNameRecordFailureRestoresBytes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orig, err := f.svc.Upload(ctx, Upload{Filename: "refund.txt", Content: []byte(testutil.RefundPolicy)})
	require.NoError(t, err)

	f.repo.upsertErr = errors.New("deadlock detected")
	_, err = f.svc.Replace(ctx, orig.ID, Upload{Filename: "refund-v2.txt", Content: []byte(testutil.ShippingPolicy)})
	require.Error(t, err)
	assert.Equal(t, "Failed to replace document: deadlock detected", types.Detail(err))

	content, err := f.storage.ReadBytes(ctx, orig.StoredName)
	require.NoError(t, err)
	assert.Equal(t, testutil.RefundPolicy, string(content))
	assert.Equal(t, []string{vectorstore.ChunkID(orig.ID, 0)}, f.mem.IDs())
}

func TestReplace_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Replace(ctx, "missing", Upload{Filename: "a.txt", Content: []byte("text")})
	assert.ErrorIs(t, err, types.ErrIngestion)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, "Document not found.", types.Detail(err))

	orig, err := f.svc.Upload(ctx, Upload{Filename: "refund.txt", Content: []byte(testutil.RefundPolicy)})
	require.NoError(t, err)

	_, err = f.svc.Replace(ctx, orig.ID, Upload{Filename: "refund.txt"})
	assert.Equal(t, "Replacement file is empty.", types.Detail(err))

	_, err = f.svc.Replace(ctx, orig.ID, Upload{Filename: "refund.csv", Content: []byte("a,b")})
	assert.Equal(t, "Unsupported file type '.csv'. Allowed: PDF, DOCX, TXT, MD, HTML.", types.Detail(err))
}

// ========== Delete / Query ==========

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, Upload{Filename: "refund.txt", Content: []byte(testutil.RefundPolicy)})
	require.NoError(t, err)
	keep, err := f.svc.Upload(ctx, Upload{Filename: "warranty.txt", Content: []byte(testutil.WarrantyPolicy)})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, doc.ID))
	assert.Equal(t, []string{keep.StoredName}, f.storedFiles(t))
	assert.Equal(t, []string{vectorstore.ChunkID(keep.ID, 0)}, f.mem.IDs())
	assert.Equal(t, 1, f.repo.count())

	err = f.svc.Delete(ctx, doc.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, "Document not found.", types.Detail(err))
}

func TestDelete_MissingBytesTolerated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, Upload{Filename: "refund.txt", Content: []byte(testutil.RefundPolicy)})
	require.NoError(t, err)
	require.NoError(t, f.storage.Delete(ctx, doc.StoredName))

	require.NoError(t, f.svc.Delete(ctx, doc.ID))
	assert.Zero(t, f.repo.count())
}

func TestDelete_StorageFailureStillRemovesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, Upload{Filename: "refund.txt", Content: []byte(testutil.RefundPolicy)})
	require.NoError(t, err)
	f.storage.deleteErr = types.Errorf(types.ErrStorage, "bucket unavailable")

	require.NoError(t, f.svc.Delete(ctx, doc.ID))
	assert.Empty(t, f.mem.IDs())
	assert.Zero(t, f.repo.count())
	assert.Equal(t, []string{doc.StoredName}, f.storedFiles(t))
}

func TestBatchUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BatchUpload(ctx, nil)
	assert.Equal(t, "No files uploaded.", types.Detail(err))

	result, err := f.svc.BatchUpload(ctx, []Upload{
		{Filename: "refund.txt", Content: []byte(testutil.RefundPolicy)},
		{Filename: "", Content: []byte("x")},
		{Filename: "image.png", Content: []byte{0x89, 'P', 'N', 'G'}},
	})
	require.NoError(t, err)
	require.Len(t, result.Indexed, 1)
	assert.Equal(t, "refund.txt", result.Indexed[0].OriginalName)
	assert.Equal(t, []FailedUpload{
		{Filename: "unknown", Reason: "Missing filename."},
		{Filename: "image.png", Reason: "Unsupported file type '.png'. Allowed: PDF, DOCX, TXT, MD, HTML."},
	}, result.Failed)
}

func TestListAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stats, err := f.svc.StorageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, stats)

	first, err := f.svc.Upload(ctx, Upload{Filename: "refund.txt", Content: []byte(testutil.RefundPolicy)})
	require.NoError(t, err)
	second, err := f.svc.Upload(ctx, Upload{Filename: "warranty.txt", Content: []byte(testutil.WarrantyPolicy)})
	require.NoError(t, err)

	docs, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, second.ID, docs[0].ID)
	assert.Equal(t, first.ID, docs[1].ID)

	stats, err = f.svc.StorageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, int64(len(testutil.RefundPolicy)+len(testutil.WarrantyPolicy)), stats.Bytes)

	_, err = f.svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

// staticResolver 复用 fixture 的向量化器做断言检索
func staticResolver(f *fixture) vectorstore.EmbedderSource {
	return vectorstore.NewResolver([]vectorstore.Candidate{{
		Name:  "fake",
		Build: func(context.Context) (embedding.Embedder, error) { return f.embedder, nil },
	}}, time.Second)
}

// ========== keyedMutex / saga ==========

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("doc-1")
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Zero(t, k.size())

	// 不同 key 互不阻塞
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())
	unlockA()
	unlockB()
	assert.Zero(t, k.size())
}

func TestSaga_RollbackReverseOrder(t *testing.T) {
	var order []string
	var tx saga
	tx.onRollback(func(context.Context) { order = append(order, "storage") })
	tx.onRollback(func(context.Context) { order = append(order, "index") })

	tx.rollback(testutil.CanceledContext())
	assert.Equal(t, []string{"index", "storage"}, order)

	tx.rollback(context.Background())
	assert.Len(t, order, 2)
}
