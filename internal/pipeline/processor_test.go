package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanvault/scanvault/internal/index"
	"github.com/scanvault/scanvault/internal/observability"
	"github.com/scanvault/scanvault/internal/ocr"
)

// recorder tracks the order of side effects across fakes so tests can
// assert stage ordering.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type fakeIndex struct {
	rec       *recorder
	existing  map[string]bool
	commitErr error

	committed      []*index.FileRecord
	committedPages [][]index.PageEntry
}

func (f *fakeIndex) Exists(_ context.Context, path string) (bool, error) {
	return f.existing[path], nil
}

func (f *fakeIndex) Commit(_ context.Context, rec *index.FileRecord, pages []index.PageEntry) error {
	if f.rec != nil {
		f.rec.add("commit")
	}
	if f.commitErr != nil {
		return f.commitErr
	}
	rec.ID = int64(len(f.committed) + 1)
	f.committed = append(f.committed, rec)
	f.committedPages = append(f.committedPages, pages)
	return nil
}

type fakeRemote struct {
	rec       *recorder
	bucketErr error
	uploadErr error
	uploaded  []string
}

func (f *fakeRemote) EnsureBucket(context.Context) error { return f.bucketErr }

func (f *fakeRemote) Upload(_ context.Context, _, key string) error {
	if f.rec != nil {
		f.rec.add("upload")
	}
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploaded = append(f.uploaded, key)
	return nil
}

type fakeNormalizer struct {
	err   error
	calls int
}

func (f *fakeNormalizer) Normalize(_ context.Context, _, dst string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dst, []byte("uncompressed"), 0o644)
}

type fakeCompressor struct {
	err error
}

func (f *fakeCompressor) Compress(_ context.Context, src, dst string) error {
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, append([]byte("compressed:"), data...), 0o644)
}

type fakeRecognizer struct {
	pages []ocr.Page
	err   error
}

func (f *fakeRecognizer) ProcessPDF(_ context.Context, _ string) ([]ocr.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

func onePage() []ocr.Page {
	return []ocr.Page{{
		Num:     1,
		Width:   800,
		Height:  600,
		Content: "INVOICE",
		Tokens:  []ocr.Token{{Text: "INVOICE", Confidence: 92, X: 10, Y: 20, Width: 100, Height: 30}},
	}}
}

type fixture struct {
	scratch    string
	rec        *recorder
	idx        *fakeIndex
	remote     *fakeRemote
	normalizer *fakeNormalizer
	compressor *fakeCompressor
	recognizer *fakeRecognizer
	processor  *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec := &recorder{}
	f := &fixture{
		scratch:    t.TempDir(),
		rec:        rec,
		idx:        &fakeIndex{rec: rec, existing: map[string]bool{}},
		remote:     &fakeRemote{rec: rec},
		normalizer: &fakeNormalizer{},
		compressor: &fakeCompressor{},
		recognizer: &fakeRecognizer{pages: onePage()},
	}
	f.processor = NewProcessor(
		f.scratch, f.idx, f.remote, f.normalizer, f.compressor, f.recognizer,
		observability.Nop(),
	)
	return f
}

func testTask() Task {
	return Task{SourcePath: "/corpus/docs/photo.jpg", RelPath: filepath.Join("docs", "photo.jpg")}
}

func TestProcessor_Process_Success(t *testing.T) {
	f := newFixture(t)

	res := f.processor.Process(context.Background(), testTask())

	require.Equal(t, StatusProcessed, res.Status)
	assert.Equal(t, 1, res.PageCount)

	require.Len(t, f.idx.committed, 1)
	rec := f.idx.committed[0]
	assert.Equal(t, "/corpus/docs/photo.jpg", rec.OriginalPath)
	assert.Equal(t, "docs/photo.pdf", rec.ProcessedPath)
	assert.Equal(t, 1, rec.PageCount)

	require.Len(t, f.idx.committedPages, 1)
	pages := f.idx.committedPages[0]
	require.Len(t, pages, 1)
	assert.Equal(t, "INVOICE", pages[0].Content)
	assert.JSONEq(t, `[{"t":"INVOICE","x":10,"y":20,"w":100,"h":30}]`, pages[0].BBoxJSON)
	assert.Equal(t, 800, pages[0].Width)
	assert.Equal(t, 600, pages[0].Height)

	assert.Equal(t, []string{"docs/photo.pdf"}, f.remote.uploaded)

	// Local artifact removed once the remote copy is the system of record.
	_, err := os.Stat(filepath.Join(f.scratch, "docs", "photo.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestProcessor_UploadBeforeCommit(t *testing.T) {
	f := newFixture(t)

	res := f.processor.Process(context.Background(), testTask())

	require.Equal(t, StatusProcessed, res.Status)
	require.Equal(t, []string{"upload", "commit"}, f.rec.events)
}

func TestProcessor_DedupGuardSkips(t *testing.T) {
	f := newFixture(t)
	f.idx.existing["/corpus/docs/photo.jpg"] = true

	res := f.processor.Process(context.Background(), testTask())

	assert.Equal(t, StatusSkipped, res.Status)
	assert.Zero(t, f.normalizer.calls)
	assert.Empty(t, f.idx.committed)
	assert.Empty(t, f.remote.uploaded)
}

func TestProcessor_ConversionFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.normalizer.err = errors.New("converter crashed")

	res := f.processor.Process(context.Background(), testTask())

	require.Equal(t, StatusFailed, res.Status)
	require.NotNil(t, res.Err)
	assert.Equal(t, StageConvert, res.Err.Stage)
	assert.Empty(t, f.idx.committed)
	assert.Empty(t, f.remote.uploaded)
}

func TestProcessor_CompressionFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.compressor.err = errors.New("gs not found")

	res := f.processor.Process(context.Background(), testTask())

	require.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, 1, res.PageCount)

	// Committed identically to the compressed case.
	require.Len(t, f.idx.committed, 1)
	assert.Equal(t, "docs/photo.pdf", f.idx.committed[0].ProcessedPath)
	require.Len(t, f.idx.committedPages[0], 1)
	assert.Equal(t, "INVOICE", f.idx.committedPages[0][0].Content)

	// The pre-compression scratch file is gone on either branch.
	_, err := os.Stat(filepath.Join(f.scratch, "docs", "photo.pdf.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestProcessor_RasterizationFailureDiscardsArtifact(t *testing.T) {
	f := newFixture(t)
	f.recognizer.err = errors.New("corrupt pdf")

	res := f.processor.Process(context.Background(), testTask())

	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, StageRasterize, res.Err.Stage)
	assert.Empty(t, f.remote.uploaded)
	assert.Empty(t, f.idx.committed)

	_, err := os.Stat(filepath.Join(f.scratch, "docs", "photo.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestProcessor_UploadFailureRetainsArtifact(t *testing.T) {
	f := newFixture(t)
	f.remote.uploadErr = errors.New("store unreachable")

	res := f.processor.Process(context.Background(), testTask())

	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, StageUpload, res.Err.Stage)
	assert.Empty(t, f.idx.committed)

	// Artifact kept for cheap retry on the next run.
	_, err := os.Stat(filepath.Join(f.scratch, "docs", "photo.pdf"))
	assert.NoError(t, err)
}

func TestProcessor_CommitDuplicateResolvesAsSkip(t *testing.T) {
	f := newFixture(t)
	f.idx.commitErr = index.ErrDuplicate

	res := f.processor.Process(context.Background(), testTask())

	assert.Equal(t, StatusSkipped, res.Status)
	assert.Nil(t, res.Err)
}

func TestProcessor_CommitFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.idx.commitErr = errors.New("disk full")

	res := f.processor.Process(context.Background(), testTask())

	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, StageCommit, res.Err.Stage)
}

func TestProcessor_EmptyPageTokensSerializeAsEmptyArray(t *testing.T) {
	f := newFixture(t)
	f.recognizer.pages = []ocr.Page{{Num: 1, Width: 100, Height: 100}}

	res := f.processor.Process(context.Background(), testTask())

	require.Equal(t, StatusProcessed, res.Status)
	require.Len(t, f.idx.committedPages, 1)
	assert.Equal(t, "[]", f.idx.committedPages[0][0].BBoxJSON)
	assert.Equal(t, "", f.idx.committedPages[0][0].Content)
}
