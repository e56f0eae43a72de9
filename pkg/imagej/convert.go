package imagej

import (
	"fmt"
	"image"
	"image/color"
)

// Convert8Bit converts img to 8-bit grayscale. 8-bit input is copied,
// 16-bit input is scaled from its own min..max range and color input is
// averaged with equal channel weights, truncating
// like ImageJ's unweighted conversion.
func Convert8Bit(img image.Image) (*image.Gray, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}

	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < bounds.Dy(); y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			copy(out.Pix[y*out.Stride:y*out.Stride+bounds.Dx()], row[:bounds.Dx()])
		}

	case *image.Gray16:
		minV, maxV := 65535, 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				v := int(src.Gray16At(x, y).Y)
				if v < minV {
					minV = v
				}
				if v > maxV {
					maxV = v
				}
			}
		}
		scale := 256.0 / float64(maxV-minV+1)
		for y := 0; y < bounds.Dy(); y++ {
			for x := 0; x < bounds.Dx(); x++ {
				v := int(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y) - minV
				scaled := int(float64(v)*scale + 0.5)
				if scaled > 255 {
					scaled = 255
				}
				out.Pix[y*out.Stride+x] = uint8(scaled)
			}
		}

	default:
		for y := 0; y < bounds.Dy(); y++ {
			for x := 0; x < bounds.Dx(); x++ {
				c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
				out.Pix[y*out.Stride+x] = uint8((int(c.R) + int(c.G) + int(c.B)) / 3)
			}
		}
	}

	return out, nil
}

// Subtract returns img - bg, clipped at zero. Both images must have the same
// size. Gray and Gray16 pairs keep their depth; anything else is subtracted
// per RGB channel at 8 bits.
func Subtract(img, bg image.Image) (image.Image, error) {
	if isEmpty(img) || isEmpty(bg) {
		return nil, ErrEmptyImage
	}

	ib, bb := img.Bounds(), bg.Bounds()
	if ib.Dx() != bb.Dx() || ib.Dy() != bb.Dy() {
		return nil, fmt.Errorf("size mismatch: image %dx%d, background %dx%d",
			ib.Dx(), ib.Dy(), bb.Dx(), bb.Dy())
	}
	w, h := ib.Dx(), ib.Dy()

	switch a := img.(type) {
	case *image.Gray:
		if b, ok := bg.(*image.Gray); ok {
			out := image.NewGray(image.Rect(0, 0, w, h))
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					va := int(a.GrayAt(ib.Min.X+x, ib.Min.Y+y).Y)
					vb := int(b.GrayAt(bb.Min.X+x, bb.Min.Y+y).Y)
					out.Pix[y*out.Stride+x] = uint8(clipSub(va, vb))
				}
			}
			return out, nil
		}
	case *image.Gray16:
		if b, ok := bg.(*image.Gray16); ok {
			out := image.NewGray16(image.Rect(0, 0, w, h))
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					va := int(a.Gray16At(ib.Min.X+x, ib.Min.Y+y).Y)
					vb := int(b.Gray16At(bb.Min.X+x, bb.Min.Y+y).Y)
					out.SetGray16(x, y, color.Gray16{Y: uint16(clipSub(va, vb))})
				}
			}
			return out, nil
		}
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ca := color.NRGBAModel.Convert(img.At(ib.Min.X+x, ib.Min.Y+y)).(color.NRGBA)
			cb := color.NRGBAModel.Convert(bg.At(bb.Min.X+x, bb.Min.Y+y)).(color.NRGBA)
			out.SetNRGBA(x, y, color.NRGBA{
				R: uint8(clipSub(int(ca.R), int(cb.R))),
				G: uint8(clipSub(int(ca.G), int(cb.G))),
				B: uint8(clipSub(int(ca.B), int(cb.B))),
				A: 255,
			})
		}
	}
	return out, nil
}

func clipSub(a, b int) int {
	if a < b {
		return 0
	}
	return a - b
}
