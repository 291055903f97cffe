package index

import "time"

// FileRecord is the structured row describing one fully processed source
// file. Its presence, keyed by OriginalPath, is the idempotency marker: a
// committed record means the file must never be reprocessed.
type FileRecord struct {
	ID            int64
	OriginalPath  string
	ProcessedPath string
	PageCount     int
	ProcessedAt   time.Time
}

// PageEntry is one full-text-indexed row per rasterized page. Entries are
// only ever written in the same transaction as their parent FileRecord.
type PageEntry struct {
	FileID   int64
	PageNum  int
	Content  string
	BBoxJSON string
	Width    int
	Height   int
}

// Stats summarizes the committed corpus.
type Stats struct {
	Files int64
	Pages int64
}
