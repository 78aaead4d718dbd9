// Package stack loads and stores time-lapse frame stacks as directories of
// single-frame images. Frames are ordered by the number in their filename.
package stack

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"

	"cellcurvature/internal/models"
)

// Extensions lists the accepted image file extensions.
var Extensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}

func supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// List returns the image files of dir sorted by the number in their names.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !supported(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}

	// Frame order follows the number embedded in the filename
	sort.SliceStable(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(dir, f)
	}
	return paths, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// loadImage decodes a PNG, JPEG or TIFF file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return tiff.Decode(file)
	case ".jpg", ".jpeg":
		return jpeg.Decode(file)
	default:
		return png.Decode(file)
	}
}

// imageToFloat converts an image to row-major intensities. 8-bit images keep
// their 0-255 range, 16-bit grayscale keeps its raw counts, anything else is
// converted to 8-bit luminance. MaxValue records the resulting full scale.
func imageToFloat(img image.Image) models.Image {
	b := img.Bounds()
	out := models.NewImage(b.Dx(), b.Dy())
	out.MaxValue = math.MaxUint8
	if _, ok := img.(*image.Gray16); ok {
		out.MaxValue = math.MaxUint16
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			var v float64
			switch im := img.(type) {
			case *image.Gray:
				v = float64(im.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			case *image.Gray16:
				v = float64(im.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			default:
				v = float64(color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y)
			}
			out.Set(x, y, v)
		}
	}
	return out
}

// LoadImage reads one fluorescence frame.
func LoadImage(path string) (models.Image, error) {
	img, err := loadImage(path)
	if err != nil {
		return models.Image{}, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	return imageToFloat(img), nil
}

// LoadMask reads one mask frame; any non-zero pixel is foreground.
func LoadMask(path string) (models.Mask, error) {
	im, err := LoadImage(path)
	if err != nil {
		return models.Mask{}, err
	}
	m := models.NewMask(im.Width, im.Height)
	for i, v := range im.Pix {
		m.Pix[i] = v != 0
	}
	return m, nil
}

// Load reads a mask directory and a fluorescence directory and pairs them
// into frames. Stack lengths and frame sizes must agree.
func Load(maskDir, fluorDir string) ([]models.Frame, error) {
	maskPaths, err := List(maskDir)
	if err != nil {
		return nil, err
	}
	fluorPaths, err := List(fluorDir)
	if err != nil {
		return nil, err
	}
	if len(maskPaths) != len(fluorPaths) {
		return nil, fmt.Errorf("%d mask frames, %d fluorescence frames: %w",
			len(maskPaths), len(fluorPaths), models.ErrDimensionMismatch)
	}

	masks := make([]models.Mask, len(maskPaths))
	fluor := make([]models.Image, len(fluorPaths))
	for i := range maskPaths {
		if masks[i], err = LoadMask(maskPaths[i]); err != nil {
			return nil, err
		}
		if fluor[i], err = LoadImage(fluorPaths[i]); err != nil {
			return nil, err
		}
	}
	return models.Frames(masks, fluor)
}

// maskToImage renders a mask as 8-bit black and white.
func maskToImage(m models.Mask) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v {
			img.Pix[i] = 255
		}
	}
	return img
}

// floatToImage stores intensities as 16-bit grayscale, clamped to 0-65535.
func floatToImage(im models.Image) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, im.Width, im.Height))
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			v := max(0, min(65535, im.At(x, y)))
			img.SetGray16(x, y, color.Gray16{Y: uint16(v + 0.5)})
		}
	}
	return img
}

// writeImage encodes img according to the extension of path.
func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	case ".png":
		err = png.Encode(f, img)
	default:
		return fmt.Errorf("unsupported output format %s", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// Save writes frames into maskDir and fluorDir as frame_NNNN files with the
// given extension (".png" or ".tif"). Fluorescence is stored as 16-bit.
func Save(frames []models.Frame, maskDir, fluorDir, ext string) error {
	for _, dir := range []string{maskDir, fluorDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	for _, f := range frames {
		name := fmt.Sprintf("frame_%04d%s", f.Index, ext)
		if err := writeImage(filepath.Join(maskDir, name), maskToImage(f.Mask)); err != nil {
			return err
		}
		if err := writeImage(filepath.Join(fluorDir, name), floatToImage(f.Fluorescence)); err != nil {
			return err
		}
	}
	return nil
}
