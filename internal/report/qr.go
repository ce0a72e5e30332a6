package report

import (
	"errors"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultQRSize = 128

// DigestToQR renders the file digest as a QR code PNG. The digest is
// reduced to bare uppercase hex first so a scan of the printed report
// compares equal to sha256sum output regardless of source formatting.
func DigestToQR(digest string, size int) ([]byte, error) {
	hex := hexOnly(digest)
	if hex == "" {
		return nil, errors.New("digest is empty")
	}
	if size <= 0 {
		size = defaultQRSize
	}
	return qrcode.Encode(hex, qrcode.Medium, size)
}

func hexOnly(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
