// Package qr renders QR codes for ttyhub's supplemental qr.png endpoint, so
// an operator can hand a phone a scannable link to a running service
// instead of typing a URL.
package qr

import "github.com/skip2/go-qrcode"

// PNG encodes data as a QR code PNG image of size x size pixels, trying
// recovery levels from highest to lowest until one succeeds.
func PNG(data string, size int) ([]byte, error) {
	levels := []qrcode.RecoveryLevel{qrcode.High, qrcode.Medium, qrcode.Low}

	var lastErr error
	for _, level := range levels {
		code, err := qrcode.New(data, level)
		if err != nil {
			lastErr = err
			continue
		}
		return code.PNG(size)
	}
	return nil, lastErr
}
