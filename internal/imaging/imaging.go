// Package imaging prepares image attachments for upload: decode, downscale,
// re-encode and de-duplicate.
package imaging

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/blake3"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/diogo/geminiworkshop/internal/models"
)

const (
	// MaxImageSize is the largest source file accepted (20MB)
	MaxImageSize = 20 * 1024 * 1024
	// MaxSourcePixels bounds width*height of a source image before it is decoded
	MaxSourcePixels = 50_000_000
	// DefaultMaxDimension bounds the longest side after scaling
	DefaultMaxDimension = 768

	jpegQuality = 85
)

// Attachment is a prepared image ready to send
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
	Width    int
	Height   int
	Hash     string // BLAKE3 of Data, hex
}

// Blob converts the attachment to a request part
func (a Attachment) Blob() models.Blob {
	return models.Blob{MIMEType: a.MIMEType, Data: a.Data}
}

// Blobs converts attachments to request parts
func Blobs(atts []Attachment) []models.Blob {
	out := make([]models.Blob, 0, len(atts))
	for _, a := range atts {
		out = append(out, a.Blob())
	}
	return out
}

// LoadFile reads and prepares the image at path
func LoadFile(path string, maxDim int) (Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to stat image: %w", err)
	}
	if info.IsDir() {
		return Attachment{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxImageSize {
		return Attachment{}, fmt.Errorf("file size exceeds maximum %d bytes", MaxImageSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to read image: %w", err)
	}
	return Prepare(filepath.Base(path), data, maxDim)
}

// Prepare decodes data, scales it so the longest side is at most maxDim
// (aspect ratio preserved) and re-encodes it. Images with transparency are
// encoded as PNG, everything else as JPEG.
func Prepare(name string, data []byte, maxDim int) (Attachment, error) {
	if len(data) > MaxImageSize {
		return Attachment{}, fmt.Errorf("data size exceeds maximum %d bytes", MaxImageSize)
	}
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	// Compressed size says little about decoded size; check the header first
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Attachment{}, fmt.Errorf("unsupported image %s: %w", name, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return Attachment{}, fmt.Errorf("image %s is %dx%d, exceeds %d pixels", name, cfg.Width, cfg.Height, MaxSourcePixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Attachment{}, fmt.Errorf("unsupported image %s: %w", name, err)
	}

	scaled := Downscale(src, maxDim)

	var buf bytes.Buffer
	mimeType := "image/jpeg"
	if hasAlpha(scaled) {
		mimeType = "image/png"
		err = png.Encode(&buf, scaled)
	} else {
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to encode %s image %s: %w", format, name, err)
	}

	out := buf.Bytes()
	b := scaled.Bounds()
	return Attachment{
		Name:     name,
		MIMEType: mimeType,
		Data:     out,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Hash:     Hash(out),
	}, nil
}

// Downscale returns src scaled so neither side exceeds maxDim.
// Images already within bounds are returned unchanged.
func Downscale(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

// Hash returns the hex BLAKE3 digest of data
func Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Dedup drops attachments whose content was already seen, keeping order
func Dedup(atts []Attachment) []Attachment {
	seen := make(map[string]bool, len(atts))
	out := atts[:0:0]
	for _, a := range atts {
		if seen[a.Hash] {
			continue
		}
		seen[a.Hash] = true
		out = append(out, a)
	}
	return out
}

// ExpandPaths resolves each pattern (doublestar globs allowed) to files.
// A literal path that matches nothing is an error.
func ExpandPaths(patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no images match %q", p)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// LoadAll expands patterns, prepares every image and drops duplicates
func LoadAll(patterns []string, maxDim int) ([]Attachment, error) {
	paths, err := ExpandPaths(patterns)
	if err != nil {
		return nil, err
	}
	atts := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		a, err := LoadFile(p, maxDim)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		atts = append(atts, a)
	}
	return Dedup(atts), nil
}
