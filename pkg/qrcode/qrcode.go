// Package qrcode renders short links as PNG data URLs for the frontend.
package qrcode

import (
	"encoding/base64"
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

const imageSize = 256

// DataURL encodes the given URL as a PNG QR code and returns it as a
// base64 data URL suitable for an <img> src attribute.
func DataURL(url string) (string, error) {
	png, err := qr.Encode(url, qr.Medium, imageSize)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
