// Package pipeline implements the per-file processing state machine and
// the worker pool that drives it across a corpus.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scanvault/scanvault/internal/index"
	"github.com/scanvault/scanvault/internal/observability"
	"github.com/scanvault/scanvault/internal/ocr"
	"github.com/scanvault/scanvault/internal/store"
)

// Index is the slice of the index store the pipeline needs: the dedup
// lookup and the atomic commit.
type Index interface {
	Exists(ctx context.Context, originalPath string) (bool, error)
	Commit(ctx context.Context, rec *index.FileRecord, pages []index.PageEntry) error
}

// Remote is the slice of the artifact store the pipeline needs.
type Remote interface {
	EnsureBucket(ctx context.Context) error
	Upload(ctx context.Context, localPath, key string) error
}

// Normalizer converts an accepted input into a PDF at dst.
type Normalizer interface {
	Normalize(ctx context.Context, src, dst string) error
}

// Compressor writes a compressed copy of src to dst.
type Compressor interface {
	Compress(ctx context.Context, src, dst string) error
}

// Recognizer renders and recognizes every page of the PDF at path.
type Recognizer interface {
	ProcessPDF(ctx context.Context, path string) ([]ocr.Page, error)
}

// Status is the outcome of processing one task.
type Status string

const (
	// StatusProcessed means the file went through every stage and was
	// committed to the index.
	StatusProcessed Status = "processed"
	// StatusDegraded means the file was committed but compression failed
	// and the uncompressed artifact was uploaded instead.
	StatusDegraded Status = "degraded"
	// StatusSkipped means the dedup guard found the file already
	// committed, either up front or at commit time after losing a race.
	StatusSkipped Status = "skipped"
	// StatusFailed means a fatal stage error abandoned the task.
	StatusFailed Status = "failed"
)

// Result describes what happened to one task.
type Result struct {
	Task      Task
	Status    Status
	PageCount int
	Err       *StageError
}

// Processor runs the per-file state machine:
// dedup -> convert -> compress -> rasterize/recognize -> upload -> commit.
type Processor struct {
	scratchDir string
	idx        Index
	remote     Remote
	normalizer Normalizer
	compressor Compressor
	recognizer Recognizer
	logger     *observability.Logger
}

// NewProcessor wires the stage engine to its collaborators. scratchDir is
// the local area where intermediate and final artifacts live before
// upload.
func NewProcessor(
	scratchDir string,
	idx Index,
	remote Remote,
	normalizer Normalizer,
	compressor Compressor,
	recognizer Recognizer,
	logger *observability.Logger,
) *Processor {
	return &Processor{
		scratchDir: scratchDir,
		idx:        idx,
		remote:     remote,
		normalizer: normalizer,
		compressor: compressor,
		recognizer: recognizer,
		logger:     logger.WithComponent("pipeline"),
	}
}

// Process runs one task to completion. All failures are contained in the
// returned Result; Process never panics the worker or affects sibling
// tasks.
func (p *Processor) Process(ctx context.Context, task Task) Result {
	// Dedup guard. A committed record means fully processed: drop the
	// task silently so re-runs over a partially processed corpus are
	// cheap and safe.
	exists, err := p.idx.Exists(ctx, task.SourcePath)
	if err != nil {
		return p.failed(task, StageLookup, err)
	}
	if exists {
		p.logger.Debug().Str("path", task.SourcePath).Msg("already indexed, skipping")
		return Result{Task: task, Status: StatusSkipped}
	}

	finalPDF := p.scratchPath(task)
	if err := os.MkdirAll(filepath.Dir(finalPDF), 0o755); err != nil {
		return p.failed(task, StageConvert, err)
	}
	tempPDF := finalPDF + ".tmp"

	// Conversion: normalize the input into a PDF at the temp scratch
	// path. Fatal for the file.
	if err := p.normalizer.Normalize(ctx, task.SourcePath, tempPDF); err != nil {
		removeIfPresent(tempPDF)
		return p.failed(task, StageConvert, err)
	}

	// Compression: an optimization, not a correctness requirement. On
	// failure the uncompressed artifact is promoted instead. The
	// pre-compression scratch file is consumed exactly once on either
	// branch: renamed away on fallback, deleted after success.
	degraded := false
	if err := p.compressor.Compress(ctx, tempPDF, finalPDF); err != nil {
		p.logger.Warn().Str("path", task.SourcePath).Err(err).
			Msg("compression failed, keeping uncompressed artifact")
		degraded = true
		if err := os.Rename(tempPDF, finalPDF); err != nil {
			return p.failed(task, StageCompress, fmt.Errorf("promote uncompressed artifact: %w", err))
		}
	} else {
		removeIfPresent(tempPDF)
	}

	// Rasterization + recognition. Fatal for the file; nothing has been
	// published yet so the scratch artifact is discarded.
	pages, err := p.recognizer.ProcessPDF(ctx, finalPDF)
	if err != nil {
		removeIfPresent(finalPDF)
		return p.failed(task, StageRasterize, err)
	}

	// Upload before commit. If the store is unreachable the scratch
	// artifact is deliberately retained so a later run retries without
	// redoing conversion and recognition.
	key := store.Key(task.RelPath)
	if err := p.remote.EnsureBucket(ctx); err != nil {
		return p.failed(task, StageUpload, err)
	}
	if err := p.remote.Upload(ctx, finalPDF, key); err != nil {
		return p.failed(task, StageUpload, err)
	}

	// Atomic commit of the file record and all page entries. Losing a
	// duplicate race here resolves as a skip, not an error.
	rec := &index.FileRecord{
		OriginalPath:  task.SourcePath,
		ProcessedPath: key,
		PageCount:     len(pages),
	}
	if err := p.idx.Commit(ctx, rec, pageEntries(pages)); err != nil {
		if errors.Is(err, index.ErrDuplicate) {
			p.logger.Debug().Str("path", task.SourcePath).Msg("lost commit race, skipping")
			removeIfPresent(finalPDF)
			return Result{Task: task, Status: StatusSkipped}
		}
		return p.failed(task, StageCommit, err)
	}

	// The remote copy is the system of record now.
	removeIfPresent(finalPDF)

	status := StatusProcessed
	if degraded {
		status = StatusDegraded
	}
	p.logger.Info().
		Str("path", task.SourcePath).
		Str("key", key).
		Int("pages", len(pages)).
		Str("status", string(status)).
		Msg("file indexed")

	return Result{Task: task, Status: status, PageCount: len(pages)}
}

// scratchPath maps a task onto the local scratch area, mirroring the
// source tree and swapping the extension for .pdf. Distinct relative
// paths give distinct scratch paths, so tasks never collide.
func (p *Processor) scratchPath(task Task) string {
	dest := filepath.Join(p.scratchDir, task.RelPath)
	return strings.TrimSuffix(dest, filepath.Ext(dest)) + ".pdf"
}

func (p *Processor) failed(task Task, stage Stage, err error) Result {
	serr := stageErr(stage, task.SourcePath, err)
	p.logger.Error().Str("stage", string(stage)).Str("path", task.SourcePath).Err(err).
		Msg("file processing failed")
	return Result{Task: task, Status: StatusFailed, Err: serr}
}

func pageEntries(pages []ocr.Page) []index.PageEntry {
	entries := make([]index.PageEntry, 0, len(pages))
	for _, page := range pages {
		entries = append(entries, index.PageEntry{
			PageNum:  page.Num,
			Content:  page.Content,
			BBoxJSON: marshalTokens(page.Tokens),
			Width:    page.Width,
			Height:   page.Height,
		})
	}
	return entries
}

// removeIfPresent deletes a scratch file, tolerating its absence. Stale
// scratch from permanently failing files is an operator concern.
func removeIfPresent(path string) {
	_ = os.Remove(path)
}

func marshalTokens(tokens []ocr.Token) string {
	if len(tokens) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		// Tokens are plain strings and ints; this cannot fail at runtime.
		return "[]"
	}
	return string(data)
}
