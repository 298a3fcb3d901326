package auth

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/rotisserie/eris"

	"github.com/sells-group/truthstamp/internal/model"
)

// Request signature headers.
const (
	HeaderAddress   = "X-Truthstamp-Address"
	HeaderNonce     = "X-Truthstamp-Nonce"
	HeaderSignature = "X-Truthstamp-Signature"
)

// CanonicalRequest is the byte string a request signature covers:
// method, path, nonce, and the hex sha256 of the body, newline separated.
func CanonicalRequest(method, path, nonce string, body []byte) []byte {
	sum := sha256.Sum256(body)
	var b bytes.Buffer
	b.WriteString(method)
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(nonce)
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(sum[:]))
	return b.Bytes()
}

// SignRequest returns the hex signature header value for a request.
func (k *Key) SignRequest(method, path, nonce string, body []byte) string {
	return hex.EncodeToString(k.Sign(CanonicalRequest(method, path, nonce, body)))
}

// VerifyRequest checks a hex request signature from addr.
func VerifyRequest(addr model.Address, method, path, nonce string, body []byte, sigHex string) error {
	if nonce == "" {
		return eris.Wrap(model.ErrUnauthorized, "missing nonce")
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return eris.Wrap(model.ErrUnauthorized, "malformed signature")
	}
	if !Verify(addr, CanonicalRequest(method, path, nonce, body), sig) {
		return eris.Wrapf(model.ErrUnauthorized, "bad signature for %s", addr)
	}
	return nil
}
