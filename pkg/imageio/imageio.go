// Package imageio enumerates and decodes the micrographs of a batch and
// writes intermediate images.
package imageio

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"bacteriahts/internal/models"
)

// Extensions lists the image file extensions picked up by LoadDir
var Extensions = []string{".tif", ".tiff", ".png", ".jpg", ".jpeg", ".bmp"}

// IsImageFile reports whether the file name carries a supported extension
func IsImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load decodes a single image file. The image title is the file name.
func Load(path string, channel models.Channel) (*models.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	pixels, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	img := models.NewImage(filepath.Base(path), pixels, channel)
	img.Path = path
	return img, nil
}

// LoadDir loads every image in dir in natural file name order, so that
// well_2.tif comes before well_10.tif. Files whose name is in skip are
// ignored.
func LoadDir(dir string, channel models.Channel, skip ...string) ([]*models.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[filepath.Base(s)] = true
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) || skipped[entry.Name()] {
			continue
		}
		names = append(names, entry.Name())
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}

	sort.SliceStable(names, func(i, j int) bool {
		return NaturalLess(names[i], names[j])
	})

	images := make([]*models.Image, 0, len(names))
	for _, name := range names {
		img, err := Load(filepath.Join(dir, name), channel)
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}
		images = append(images, img)
	}

	return images, nil
}

// NaturalLess compares file names treating digit runs as numbers
func NaturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, cb := chunk(a), chunk(b)
		a, b = a[len(ca):], b[len(cb):]
		if ca == cb {
			continue
		}
		na, errA := strconv.Atoi(ca)
		nb, errB := strconv.Atoi(cb)
		if errA == nil && errB == nil && na != nb {
			return na < nb
		}
		return ca < cb
	}
	return len(a) < len(b)
}

// chunk returns the leading run of digits or non-digits of s
func chunk(s string) string {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// SavePNG writes img to path, creating the parent directory
func SavePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return file.Close()
}
