package alerts

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMessagePreviewShortBodyUnchanged(t *testing.T) {
	assert.Equal(t, "hello", messagePreview("hello"))
	assert.Equal(t, strings.Repeat("a", 120), messagePreview(strings.Repeat("a", 120)))
}

func TestMessagePreviewTruncatesLongBody(t *testing.T) {
	got := messagePreview(strings.Repeat("a", 200))
	assert.Equal(t, strings.Repeat("a", 120)+"...", got)
}

func TestMessagePreviewKeepsMultiByteRunesIntact(t *testing.T) {
	// 200 three-byte runes; a byte-indexed cut at 120 would land inside
	// one of them.
	got := messagePreview(strings.Repeat("你", 200))

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("你", 120)+"...", got)
}
