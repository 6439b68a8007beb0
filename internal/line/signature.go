package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

const SignatureHeader = "X-Line-Signature"

// Sign returns the signature LINE would send for body. Verification lives
// in webhook.ValidateSignature.
func Sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
