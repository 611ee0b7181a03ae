// Package portrait stores character and coat-of-arms images. Files are
// always written as PNG, named after their owner, with a numeric suffix to
// dodge collisions.
package portrait

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
)

// maxEdge bounds the longest side of a stored portrait.
const maxEdge = 512

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeName turns a character name into a safe base filename. Names that
// sanitize to nothing become "character".
func SanitizeName(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.Trim(s, ". ")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		return "character"
	}
	return s
}

// Attach copies the image at srcPath into imagesDir as <base>.png, appending
// _1, _2, ... while the name is taken. The stored file is re-encoded as PNG;
// with crop set it is first center-cropped square. Returns the filename.
func Attach(imagesDir, base, srcPath string, crop bool) (string, error) {
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create images directory: %w", err)
	}

	filename := availableName(imagesDir, base, "")
	img, err := decode(srcPath)
	if err != nil {
		return "", err
	}
	img = normalize(img, crop)

	if err := writePNG(filepath.Join(imagesDir, filename), img); err != nil {
		return "", err
	}
	return filename, nil
}

// Rename moves an existing portrait file to a new base name and returns the
// new filename.
func Rename(imagesDir, oldFilename, newBase string) (string, error) {
	oldPath := filepath.Join(imagesDir, oldFilename)
	if _, err := os.Stat(oldPath); err != nil {
		return "", fmt.Errorf("portrait file missing: %w", err)
	}

	filename := availableName(imagesDir, newBase, oldFilename)
	if filename == oldFilename {
		return oldFilename, nil
	}
	if err := os.Rename(oldPath, filepath.Join(imagesDir, filename)); err != nil {
		return "", fmt.Errorf("failed to rename portrait: %w", err)
	}
	return filename, nil
}

// Remove deletes a portrait file. Missing files are not an error; the record
// pointing at the file is already gone or about to be.
func Remove(imagesDir, filename string) {
	if filename == "" {
		return
	}
	_ = os.Remove(filepath.Join(imagesDir, filename))
}

// Adopt copies an already-normalized portrait file into imagesDir under
// base, picking a free filename. Used when a record moves between databases.
func Adopt(imagesDir, base, srcPath string) (string, error) {
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create images directory: %w", err)
	}
	filename := availableName(imagesDir, base, "")
	if err := Copy(srcPath, filepath.Join(imagesDir, filename)); err != nil {
		return "", err
	}
	return filename, nil
}

// Convert decodes the image at src and writes it to dst as PNG, at its
// original size.
func Convert(src, dst string) error {
	img, err := decode(src)
	if err != nil {
		return err
	}
	return writePNG(dst, img)
}

// Copy duplicates a file byte for byte.
func Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// availableName picks <base>.png or the first free <base>_N.png. A name
// equal to keep is considered free, so re-attaching under the same name is
// stable.
func availableName(imagesDir, base, keep string) string {
	name := base + ".png"
	counter := 1
	for {
		if name == keep {
			return name
		}
		if _, err := os.Stat(filepath.Join(imagesDir, name)); err != nil {
			return name
		}
		name = fmt.Sprintf("%s_%d.png", base, counter)
		counter++
	}
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("cannot decode image %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("cannot encode png: %w", err)
	}
	return f.Close()
}

// normalize optionally center-crops to a square and caps the longest edge.
func normalize(img image.Image, crop bool) image.Image {
	if crop {
		img = centerSquare(img)
	}
	b := img.Bounds()
	if b.Dx() <= maxEdge && b.Dy() <= maxEdge {
		return img
	}

	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = h * maxEdge / w
		w = maxEdge
	} else {
		w = w * maxEdge / h
		h = maxEdge
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return boxScale(img, w, h)
}

func centerSquare(img image.Image) image.Image {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2

	out := image.NewNRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			out.Set(x, y, img.At(x0+x, y0+y))
		}
	}
	return out
}

// boxScale downsamples by averaging the source box behind each destination
// pixel. Only used for shrinking, where a box filter is the right tool.
func boxScale(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		sy0 := b.Min.Y + y*b.Dy()/h
		sy1 := b.Min.Y + (y+1)*b.Dy()/h
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		for x := 0; x < w; x++ {
			sx0 := b.Min.X + x*b.Dx()/w
			sx1 := b.Min.X + (x+1)*b.Dx()/w
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}

			var r, g, bl, a, n uint64
			for sy := sy0; sy < sy1; sy++ {
				for sx := sx0; sx < sx1; sx++ {
					pr, pg, pb, pa := img.At(sx, sy).RGBA()
					r += uint64(pr)
					g += uint64(pg)
					bl += uint64(pb)
					a += uint64(pa)
					n++
				}
			}
			out.Set(x, y, color.RGBA64{
				R: uint16(r / n),
				G: uint16(g / n),
				B: uint16(bl / n),
				A: uint16(a / n),
			})
		}
	}
	return out
}
