package models

import "fmt"

// Mask is a binary image stored row-major.
type Mask struct {
	// Width is the number of columns
	Width int

	// Height is the number of rows
	Height int

	// Pix holds Width*Height values, true for foreground
	Pix []bool
}

// NewMask allocates an empty mask.
func NewMask(width, height int) Mask {
	return Mask{Width: width, Height: height, Pix: make([]bool, width*height)}
}

// In reports whether (x, y) lies within the mask bounds.
func (m Mask) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// At returns the value at (x, y); out-of-bounds positions read as false.
func (m Mask) At(x, y int) bool {
	if !m.In(x, y) {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Set writes v at (x, y). Out-of-bounds writes are ignored.
func (m Mask) Set(x, y int, v bool) {
	if m.In(x, y) {
		m.Pix[y*m.Width+x] = v
	}
}

// Inside reports whether the point lands on a foreground pixel, using the
// pixel-centre convention of Point.Pixel.
func (m Mask) Inside(p Point) bool {
	if !p.IsFinite() {
		return false
	}
	x, y := p.Pixel()
	return m.At(x, y)
}

// Count returns the number of foreground pixels.
func (m Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Image is a single-channel float image stored row-major, typically a
// fluorescence frame.
type Image struct {
	Width  int
	Height int
	Pix    []float64

	// MaxValue is the full-scale value of the source bit depth (255 for
	// 8-bit, 65535 for 16-bit data); 0 when unknown
	MaxValue float64
}

// NewImage allocates a zero image.
func NewImage(width, height int) Image {
	return Image{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// At returns the value at (x, y). The caller is responsible for bounds.
func (im Image) At(x, y int) float64 {
	return im.Pix[y*im.Width+x]
}

// Set writes v at (x, y).
func (im Image) Set(x, y int, v float64) {
	im.Pix[y*im.Width+x] = v
}

// Frame is one time point: the cell mask and the co-registered fluorescence
// channel.
type Frame struct {
	// Index is the position of this frame in the stack
	Index int

	// Mask is the binary cell segmentation
	Mask Mask

	// Fluorescence is the protein channel, same dimensions as Mask
	Fluorescence Image
}

// CheckDimensions verifies that mask and fluorescence have identical shape.
func (f Frame) CheckDimensions() error {
	if f.Mask.Width != f.Fluorescence.Width || f.Mask.Height != f.Fluorescence.Height {
		return fmt.Errorf("frame %d: mask %dx%d, fluorescence %dx%d: %w",
			f.Index, f.Mask.Width, f.Mask.Height, f.Fluorescence.Width, f.Fluorescence.Height,
			ErrDimensionMismatch)
	}
	if len(f.Mask.Pix) != f.Mask.Width*f.Mask.Height || len(f.Fluorescence.Pix) != f.Fluorescence.Width*f.Fluorescence.Height {
		return fmt.Errorf("frame %d: pixel buffer does not match declared size: %w", f.Index, ErrDimensionMismatch)
	}
	return nil
}

// CheckStacks verifies that two stacks are equal length and every frame pair
// has matching dimensions. It runs before any processing starts.
func CheckStacks(masks []Mask, fluor []Image) error {
	if len(masks) != len(fluor) {
		return fmt.Errorf("%d mask frames, %d fluorescence frames: %w", len(masks), len(fluor), ErrDimensionMismatch)
	}
	for i := range masks {
		f := Frame{Index: i, Mask: masks[i], Fluorescence: fluor[i]}
		if err := f.CheckDimensions(); err != nil {
			return err
		}
		if i > 0 && (masks[i].Width != masks[0].Width || masks[i].Height != masks[0].Height) {
			return fmt.Errorf("frame %d is %dx%d, frame 0 is %dx%d: %w",
				i, masks[i].Width, masks[i].Height, masks[0].Width, masks[0].Height, ErrDimensionMismatch)
		}
	}
	return nil
}

// Frames zips two stacks into frames after CheckStacks succeeds.
func Frames(masks []Mask, fluor []Image) ([]Frame, error) {
	if err := CheckStacks(masks, fluor); err != nil {
		return nil, err
	}
	frames := make([]Frame, len(masks))
	for i := range masks {
		frames[i] = Frame{Index: i, Mask: masks[i], Fluorescence: fluor[i]}
	}
	return frames, nil
}
