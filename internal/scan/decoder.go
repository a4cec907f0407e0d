package scan

import (
	"errors"
	"image"

	"github.com/makiuchi-d/gozxing"
	gozxingqr "github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoCode signals that a frame contains no decodable QR code. This is
// the common case for camera frames and is not surfaced as a failure.
var ErrNoCode = errors.New("no qr code in frame")

// Decoder extracts QR text from one frame.
type Decoder interface {
	Decode(frame image.Image) (string, error)
}

// QRDecoder decodes frames with the zxing QR reader.
type QRDecoder struct {
	reader gozxing.Reader
}

func NewQRDecoder() *QRDecoder {
	return &QRDecoder{reader: gozxingqr.NewQRCodeReader()}
}

// Decode returns the decoded text or ErrNoCode. Decode ambiguity and
// reader failures are both folded into ErrNoCode: the session keeps
// polling either way.
func (d *QRDecoder) Decode(frame image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return "", ErrNoCode
	}
	result, err := d.reader.Decode(bmp, nil)
	if err != nil {
		return "", ErrNoCode
	}
	return result.GetText(), nil
}
