package auth

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/goliatone/go-errors"
	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	qrgen "github.com/skip2/go-qrcode"
)

// QRCodec renders payloads to images and reads them back
type QRCodec interface {
	Encode(payload string) ([]byte, error)
	Decode(image []byte) (string, error)
}

// ErrQRUnreadable the uploaded image holds no readable QR code
var ErrQRUnreadable = errors.New("qr code could not be read", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// PNGQRCodec writes PNG images and reads PNG or JPEG uploads
type PNGQRCodec struct {
	Size  int
	Level qrgen.RecoveryLevel
}

// NewPNGQRCodec renders 256px images with medium error correction
func NewPNGQRCodec() *PNGQRCodec {
	return &PNGQRCodec{Size: 256, Level: qrgen.Medium}
}

func (c *PNGQRCodec) Encode(payload string) ([]byte, error) {
	png, err := qrgen.Encode(payload, c.Level, c.Size)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to render qr code")
	}
	return png, nil
}

func (c *PNGQRCodec) Decode(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", ErrQRUnreadable
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", ErrQRUnreadable
	}

	result, err := zxqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", ErrQRUnreadable
	}

	return result.GetText(), nil
}
