package qr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ErrEncoding is returned when the content does not fit the QR format.
var ErrEncoding = errors.New("content exceeds QR encoding capacity")

const (
	defaultSize  = 256
	labelPadding = 20
)

// RenderOptions controls the rendered raster. The zero value renders a
// 256px code without a label.
type RenderOptions struct {
	// Size is the width and height of the code raster in pixels.
	Size int

	// Label, when set, is drawn centered in a white band beneath the
	// code for human legibility.
	Label string
}

// Render encodes content into a PNG raster. The output is deterministic
// for identical content and options.
func Render(content string, opts RenderOptions) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrEncoding)
	}

	size := opts.Size
	if size <= 0 {
		size = defaultSize
	}

	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	var img image.Image = code.Image(size)
	if opts.Label != "" {
		img = compositeLabel(img, opts.Label)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// compositeLabel extends the raster with a white band and draws the label
// centered beneath the code.
func compositeLabel(code image.Image, label string) image.Image {
	bounds := code.Bounds()
	face := basicfont.Face7x13

	height := bounds.Dy() + labelPadding + face.Metrics().Height.Ceil()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, 0, bounds.Dx(), bounds.Dy()), code, bounds.Min, draw.Src)

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	width := drawer.MeasureString(label)
	drawer.Dot = fixed.Point26_6{
		X: (fixed.I(bounds.Dx()) - width) / 2,
		Y: fixed.I(bounds.Dy() + labelPadding),
	}
	drawer.DrawString(label)

	return canvas
}

// DataURL wraps a rendered PNG in the base64 data-URL form stored on a
// QR record.
func DataURL(pngData []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)
}

// DecodeDataURL reverses DataURL.
func DecodeDataURL(dataURL string) ([]byte, error) {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		return nil, errors.New("not a PNG data URL")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
}
