package discount

import (
	"fmt"
	"net/url"

	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the edge length in pixels of generated QR images.
const DefaultQRSize = 256

// QRGenerator renders gift coupon codes as scannable PNG images.
type QRGenerator struct {
	BaseURL string
	Size    int
}

// Payload returns the text encoded into the QR image for code. Without a base
// URL the bare code is encoded.
func (g QRGenerator) Payload(code string) string {
	code = NormalizeCode(code)
	if g.BaseURL == "" {
		return code
	}
	return fmt.Sprintf("%s/gift-coupon?code=%s", g.BaseURL, url.QueryEscape(code))
}

// Generate encodes code as a PNG QR image.
func (g QRGenerator) Generate(code string) ([]byte, error) {
	if NormalizeCode(code) == "" {
		return nil, ErrNotFound
	}
	size := g.Size
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(g.Payload(code), qrcode.Medium, size)
}
