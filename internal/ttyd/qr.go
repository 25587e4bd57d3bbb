package ttyd

import "github.com/trybotster/ttyhub/internal/qr"

// qrPNG renders a QR code of url as a size x size PNG.
func qrPNG(url string, size int) ([]byte, error) {
	return qr.PNG(url, size)
}
