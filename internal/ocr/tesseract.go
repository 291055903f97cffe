package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements Engine using the gosseract client. A fresh client
// is created per call; instances are not safe for concurrent reuse and a
// worker recognizes one page at a time anyway.
type Tesseract struct {
	languages []string
}

// NewTesseract constructs a Tesseract engine with the given language
// hints. An empty list leaves the engine default in place.
func NewTesseract(languages []string) *Tesseract {
	return &Tesseract{languages: languages}
}

// Recognize runs word-level recognition on a PNG-encoded page image.
// Confidence comes back in Tesseract's 0-100 range.
func (t *Tesseract) Recognize(ctx context.Context, png []byte) ([]Token, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("set page image: %w", err)
	}
	if len(t.languages) > 0 {
		if err := client.SetLanguage(t.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("word bounding boxes: %w", err)
	}

	tokens := make([]Token, 0, len(boxes))
	for _, b := range boxes {
		tokens = append(tokens, Token{
			Text:       b.Word,
			Confidence: b.Confidence,
			X:          b.Box.Min.X,
			Y:          b.Box.Min.Y,
			Width:      b.Box.Dx(),
			Height:     b.Box.Dy(),
		})
	}
	return tokens, nil
}
