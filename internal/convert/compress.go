package convert

import (
	"context"
	"fmt"
	"runtime"

	"github.com/scanvault/scanvault/internal/observability"
)

// Compressor shrinks PDFs with Ghostscript at an ebook-grade quality/size
// tradeoff. Failure here is recoverable: callers fall back to the
// uncompressed artifact.
type Compressor struct {
	runner Runner
	logger *observability.Logger
}

// NewCompressor creates a Compressor using runner for the Ghostscript call.
func NewCompressor(runner Runner, logger *observability.Logger) *Compressor {
	return &Compressor{
		runner: runner,
		logger: logger.WithComponent("compress"),
	}
}

// Compress writes a compressed copy of src to dst.
func (c *Compressor) Compress(ctx context.Context, src, dst string) error {
	if _, _, err := c.runner.Run(ctx, ghostscriptBinary(),
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=/ebook",
		"-dNOPAUSE", "-dQUIET", "-dBATCH",
		"-sOutputFile="+dst,
		src,
	); err != nil {
		return fmt.Errorf("ghostscript compression: %w", err)
	}
	return nil
}

func ghostscriptBinary() string {
	if runtime.GOOS == "windows" {
		return "gswin64c"
	}
	return "gs"
}
