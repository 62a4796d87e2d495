package render

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestColorFor picks the class color and falls back to yellow.
func TestColorFor(t *testing.T) {
	assert.Equal(t, Green, ColorFor("person"))
	assert.Equal(t, Blue, ColorFor("dog"))
	assert.Equal(t, Yellow, ColorFor("cat"))
	assert.Equal(t, Yellow, ColorFor(""))
}

// TestCaptionOrigin places the caption above the box.
func TestCaptionOrigin(t *testing.T) {
	box := image.Rect(166, 166, 249, 249)
	assert.Equal(t, image.Pt(166, 156), CaptionOrigin(box, DefaultFont()))
	assert.Equal(t, image.Pt(0, -10), CaptionOrigin(image.Rect(0, 0, 5, 5), DefaultFont()))
}
