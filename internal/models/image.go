package models

import (
	"fmt"
	"image"
)

// Channel identifies the microscopy channel an image was acquired on
type Channel int

const (
	// Brightfield images carry cell morphology and size
	Brightfield Channel = iota

	// PropidiumIodide fluorescence marks membrane-compromised cells
	PropidiumIodide
)

func (c Channel) String() string {
	switch c {
	case Brightfield:
		return "BF"
	case PropidiumIodide:
		return "PI"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// Resolution is the exact pixel size of an image. Background images are
// matched to measured images by resolution.
type Resolution struct {
	Width  int
	Height int
}

// Known camera resolutions for which background images exist.
var (
	WUXGA  = Resolution{Width: 1920, Height: 1200}
	FullHD = Resolution{Width: 1920, Height: 1080}
)

// String renders the resolution as WIDTHxHEIGHT
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseResolution parses a WIDTHxHEIGHT label
func ParseResolution(s string) (Resolution, error) {
	var r Resolution
	if _, err := fmt.Sscanf(s, "%dx%d", &r.Width, &r.Height); err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution %q: %w", s, err)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return Resolution{}, fmt.Errorf("invalid resolution %q: dimensions must be positive", s)
	}
	return r, nil
}

// Image represents a single micrograph with metadata
type Image struct {
	// Title is the image name shown in the results table
	Title string

	// Path is the file the image was loaded from, empty for in-memory images
	Path string

	// Width and Height are the pixel dimensions
	Width  int
	Height int

	// Pixels is the decoded pixel buffer
	Pixels image.Image

	// Channel is the acquisition channel
	Channel Channel
}

// NewImage wraps a decoded image, taking its dimensions from the pixel bounds
func NewImage(title string, pixels image.Image, channel Channel) *Image {
	b := pixels.Bounds()
	return &Image{
		Title:   title,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Pixels:  pixels,
		Channel: channel,
	}
}

// Resolution returns the resolution class of the image
func (img *Image) Resolution() Resolution {
	return Resolution{Width: img.Width, Height: img.Height}
}
