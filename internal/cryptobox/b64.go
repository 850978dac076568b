package cryptobox

import "encoding/base64"

// b64 is the URL-safe, unpadded base64 alphabet used for every value that
// crosses the wire or is stored in an envelope string: public keys,
// ciphertexts, nonces, signatures.
var b64 = base64.RawURLEncoding

// B64Encode encodes b as URL-safe base64 with no padding.
func B64Encode(b []byte) string {
	return b64.EncodeToString(b)
}

// B64Decode decodes a URL-safe, unpadded base64 string.
func B64Decode(s string) ([]byte, error) {
	return b64.DecodeString(s)
}
