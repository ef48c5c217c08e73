package volume

import (
	"fmt"
	"image"
	"os"

	"github.com/gekko3d/volumert/volrt/rt/core"

	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// LoadFile decodes a slice atlas (PNG, BMP or TIFF) into a Volume.
func LoadFile(name, path string, layout Layout) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDatasetLoad, name, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decode %s: %v", core.ErrDatasetLoad, name, path, err)
	}
	return DecodeTiled(name, img, layout)
}

// DecodeTiled unpacks slices tiled left to right, top to bottom. Slice k
// becomes depth k. Image rows run top-down while volume y grows upward, so
// each tile is flipped vertically. Density is the red channel.
func DecodeTiled(name string, img image.Image, layout Layout) (*Volume, error) {
	if layout.Slices < 1 || layout.SlicesPerRow < 1 {
		return nil, fmt.Errorf("%w: %s: invalid layout %+v", core.ErrDatasetLoad, name, layout)
	}
	b := img.Bounds()
	cols, rows := layout.SlicesPerRow, layout.Rows()
	if b.Dx()%cols != 0 || b.Dy()%rows != 0 {
		return nil, fmt.Errorf("%w: %s: %dx%d atlas does not divide into %dx%d tiles",
			core.ErrDatasetLoad, name, b.Dx(), b.Dy(), cols, rows)
	}
	w, h := b.Dx()/cols, b.Dy()/rows
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: %s: empty tiles", core.ErrDatasetLoad, name)
	}

	red := redChannel(img)
	data := make([]uint8, w*h*layout.Slices)
	for z := 0; z < layout.Slices; z++ {
		tx, ty := (z%cols)*w, (z/cols)*h
		for row := 0; row < h; row++ {
			y := h - 1 - row
			for x := 0; x < w; x++ {
				data[x+y*w+z*w*h] = red(b.Min.X+tx+x, b.Min.Y+ty+row)
			}
		}
	}
	return New(name, w, h, layout.Slices, data)
}

func redChannel(img image.Image) func(x, y int) uint8 {
	switch m := img.(type) {
	case *image.Gray:
		return func(x, y int) uint8 { return m.GrayAt(x, y).Y }
	case *image.RGBA:
		return func(x, y int) uint8 { return m.Pix[m.PixOffset(x, y)] }
	case *image.NRGBA:
		return func(x, y int) uint8 { return m.Pix[m.PixOffset(x, y)] }
	}
	return func(x, y int) uint8 {
		r, _, _, _ := img.At(x, y).RGBA()
		return uint8(r >> 8)
	}
}
