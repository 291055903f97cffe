package ocr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPage_DiscardsNoiseTokens(t *testing.T) {
	raw := []Token{
		{Text: "INVOICE", Confidence: 92, X: 10, Y: 20, Width: 100, Height: 30},
		{Text: "ghost", Confidence: 0, X: 1, Y: 1, Width: 1, Height: 1},
		{Text: "negative", Confidence: -1, X: 2, Y: 2, Width: 1, Height: 1},
		{Text: "   ", Confidence: 80, X: 3, Y: 3, Width: 1, Height: 1},
		{Text: " TOTAL ", Confidence: 75, X: 50, Y: 60, Width: 80, Height: 30},
	}

	page := BuildPage(1, 800, 600, raw)

	assert.Equal(t, 1, page.Num)
	assert.Equal(t, 800, page.Width)
	assert.Equal(t, 600, page.Height)
	assert.Equal(t, "INVOICE TOTAL", page.Content)
	require.Len(t, page.Tokens, 2)
	assert.Equal(t, "INVOICE", page.Tokens[0].Text)
	assert.Equal(t, "TOTAL", page.Tokens[1].Text)
}

func TestBuildPage_EmptyPage(t *testing.T) {
	page := BuildPage(3, 640, 480, nil)

	assert.Equal(t, 3, page.Num)
	assert.Empty(t, page.Content)
	assert.Empty(t, page.Tokens)
}

func TestBuildPage_PreservesEmissionOrder(t *testing.T) {
	raw := []Token{
		{Text: "c", Confidence: 10},
		{Text: "a", Confidence: 10},
		{Text: "b", Confidence: 10},
	}
	page := BuildPage(1, 10, 10, raw)
	assert.Equal(t, "c a b", page.Content)
}

func TestToken_WireFormat(t *testing.T) {
	tok := Token{Text: "INVOICE", Confidence: 92.5, X: 10, Y: 20, Width: 100, Height: 30}

	data, err := json.Marshal(tok)
	require.NoError(t, err)

	// Confidence is a filter input, never serialized.
	assert.JSONEq(t, `{"t":"INVOICE","x":10,"y":20,"w":100,"h":30}`, string(data))
}
