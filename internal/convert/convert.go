// Package convert normalizes accepted inputs into PDFs and compresses them.
// Office formats are delegated to a headless LibreOffice, compression to
// Ghostscript; both tools are reached through a stubable Runner.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/scanvault/scanvault/internal/observability"
)

// Normalizer converts any accepted input file into a PDF at a scratch
// location. The transformation is polymorphic over the input extension.
type Normalizer struct {
	runner Runner
	logger *observability.Logger
}

// NewNormalizer creates a Normalizer using runner for external tools.
func NewNormalizer(runner Runner, logger *observability.Logger) *Normalizer {
	return &Normalizer{
		runner: runner,
		logger: logger.WithComponent("convert"),
	}
}

// Normalize produces a PDF at dst from the file at src. PDFs are copied
// byte for byte, raster images are wrapped into a single-page PDF, and
// office documents go through the external converter.
func (n *Normalizer) Normalize(ctx context.Context, src, dst string) error {
	switch strings.ToLower(filepath.Ext(src)) {
	case ".pdf":
		return copyFile(src, dst)
	case ".jpg", ".jpeg", ".png":
		return n.wrapImage(src, dst)
	case ".doc", ".docx", ".xls", ".xlsx":
		return n.convertOffice(ctx, src, dst)
	default:
		return fmt.Errorf("unsupported input extension %q", filepath.Ext(src))
	}
}

// wrapImage embeds a raster image as the single page of a new PDF.
func (n *Normalizer) wrapImage(src, dst string) error {
	if err := api.ImportImagesFile([]string{src}, dst, nil, nil); err != nil {
		return fmt.Errorf("wrap image into pdf: %w", err)
	}
	return nil
}

// convertOffice runs the headless converter. LibreOffice names its output
// after the input base name inside --outdir, which may differ from the
// requested dst, so the produced file is located and moved into place.
func (n *Normalizer) convertOffice(ctx context.Context, src, dst string) error {
	outDir := filepath.Dir(dst)
	if _, _, err := n.runner.Run(ctx, "soffice",
		"--headless", "--convert-to", "pdf", "--outdir", outDir, src,
	); err != nil {
		return fmt.Errorf("office conversion: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	produced := filepath.Join(outDir, base+".pdf")

	if produced != dst {
		if _, err := os.Stat(produced); err != nil {
			return fmt.Errorf("office converter output not found at %q: %w", produced, err)
		}
		if err := os.Rename(produced, dst); err != nil {
			return fmt.Errorf("move converter output: %w", err)
		}
	}

	if _, err := os.Stat(dst); err != nil {
		return fmt.Errorf("office converter produced no output: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy pdf: %w", err)
	}
	return out.Close()
}
