package codes

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the edge length in pixels of generated QR images.
const QRSize = 320

// QRCodePNG renders an admission code as a PNG QR image.
func QRCodePNG(code string) ([]byte, error) {
	png, err := qrcode.Encode(code, qrcode.Low, QRSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
