// Package ocr renders PDF pages to images and recognizes word-level text
// on them. Rendering uses MuPDF through go-fitz; recognition is an Engine
// implementation, Tesseract by default.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/scanvault/scanvault/internal/observability"
)

// Token is one recognized word with its pixel bounding box on the page
// image. The JSON shape is the wire format stored in the index; confidence
// is a recognition-time filter input and is not serialized.
type Token struct {
	Text       string  `json:"t"`
	Confidence float64 `json:"-"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"w"`
	Height     int     `json:"h"`
}

// Page is the recognition result for one rendered page.
type Page struct {
	Num     int
	Width   int
	Height  int
	Content string
	Tokens  []Token
}

// Engine recognizes tokens on a single PNG-encoded page image.
type Engine interface {
	Recognize(ctx context.Context, png []byte) ([]Token, error)
}

// Recognizer drives rasterization and recognition for whole documents.
type Recognizer struct {
	engine Engine
	logger *observability.Logger
}

// NewRecognizer creates a Recognizer backed by engine.
func NewRecognizer(engine Engine, logger *observability.Logger) *Recognizer {
	return &Recognizer{
		engine: engine,
		logger: logger.WithComponent("ocr"),
	}
}

// ProcessPDF renders every page of the PDF at path and recognizes its
// text. Any rendering or recognition failure is fatal for the document.
// The returned slice has one entry per rendered page whether or not the
// page contained recognizable text.
func (r *Recognizer) ProcessPDF(ctx context.Context, path string) ([]Page, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rendering: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	pages := make([]Page, 0, pageCount)

	for n := 0; n < pageCount; n++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.Image(n)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", n+1, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", n+1, err)
		}

		tokens, err := r.engine.Recognize(ctx, buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("recognize page %d: %w", n+1, err)
		}

		bounds := img.Bounds()
		page := BuildPage(n+1, bounds.Dx(), bounds.Dy(), tokens)
		pages = append(pages, page)

		r.logger.Debug().
			Int("page", page.Num).
			Int("tokens", len(page.Tokens)).
			Msg("recognized page")
	}

	return pages, nil
}

// BuildPage assembles a Page from raw recognizer output. Tokens with
// confidence of zero or below, or with empty text after trimming, are
// discarded as noise. Surviving texts are joined with single spaces in
// the engine's emission order.
func BuildPage(num, width, height int, raw []Token) Page {
	var (
		kept  []Token
		words []string
	)
	for _, tok := range raw {
		if tok.Confidence <= 0 {
			continue
		}
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			continue
		}
		tok.Text = text
		kept = append(kept, tok)
		words = append(words, text)
	}

	return Page{
		Num:     num,
		Width:   width,
		Height:  height,
		Content: strings.Join(words, " "),
		Tokens:  kept,
	}
}
