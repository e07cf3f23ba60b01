package wire

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm changes.
const (
	DomainRequest = "scriptengine/request/v1"
	DomainLibrary = "scriptengine/library/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RequestHash identifies a request line.
// Requests that decode are hashed in canonical form, so key order and
// whitespace do not matter; anything else is hashed byte for byte.
func RequestHash(line []byte) string {
	req, err := Decode(line)
	if err != nil {
		return hashWithDomain(DomainRequest, line)
	}
	canonical, err := MarshalCanonical(req.fields)
	if err != nil {
		return hashWithDomain(DomainRequest, line)
	}
	return hashWithDomain(DomainRequest, canonical)
}

// LibraryHash identifies library source text after NFC normalization.
func LibraryHash(source []byte) string {
	return hashWithDomain(DomainLibrary, norm.NFC.Bytes(source))
}
