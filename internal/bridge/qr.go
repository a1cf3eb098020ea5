package bridge

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const pairingImageSize = 256

// RenderPairingImage turns a pairing code into a PNG data URI. Codes the
// bridge already delivers as data URIs are returned unchanged.
func RenderPairingImage(code string) (string, error) {
	if code == "" {
		return "", nil
	}
	if strings.HasPrefix(code, "data:image/") {
		return code, nil
	}

	png, err := qrcode.Encode(code, qrcode.Medium, pairingImageSize)
	if err != nil {
		return "", fmt.Errorf("encode pairing code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
