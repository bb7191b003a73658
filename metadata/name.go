// Package metadata implements the wire-level header and trailer model for
// the call engine: header-name validation, custom metadata, and the typed
// request/response/trailer records described by the engine's data model.
//
// Parsing never panics and never returns a bare error for malformed input:
// anything that fails validation is accumulated into an InvalidHeaders
// slice alongside a best-effort parsed result, so callers can derive both
// an HTTP status and a gRPC status from one consistent view.
package metadata

import (
	"strings"
)

// HeaderName is a validated, lowercase custom metadata key.
type HeaderName string

// reserved names can never be used for custom metadata; they are either
// pseudo-headers, transport-managed, or otherwise meaningful to the engine
// itself.
var reservedNames = map[string]struct{}{
	"user-agent":   {},
	"content-type": {},
	"te":           {},
	"trailer":      {},
}

// safeNameBytes reports whether b is in the allowed HeaderName character
// class: [0-9 a-z _ - .].
func safeNameBytes(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b >= 'a' && b <= 'z':
		return true
	case b == '_' || b == '-' || b == '.':
		return true
	default:
		return false
	}
}

// NewHeaderName validates raw as a custom metadata header name: non-empty,
// lowercase ASCII drawn from [0-9a-z_-.], not starting with "grpc-", and not
// one of the reserved pseudo/transport names.
func NewHeaderName(raw []byte) (HeaderName, error) {
	if len(raw) == 0 {
		return "", errInvalidName{raw: raw, reason: "header name must not be empty"}
	}
	for _, b := range raw {
		if !safeNameBytes(b) {
			return "", errInvalidName{raw: raw, reason: "header name contains disallowed character"}
		}
	}
	s := string(raw)
	if strings.HasPrefix(s, "grpc-") {
		return "", errInvalidName{raw: raw, reason: `header name must not start with "grpc-"`}
	}
	if _, ok := reservedNames[s]; ok {
		return "", errInvalidName{raw: raw, reason: "header name is reserved"}
	}
	return HeaderName(s), nil
}

// IsBinary reports whether this header carries a binary (base64-on-the-wire)
// value, identified by the "-bin" suffix.
func (n HeaderName) IsBinary() bool {
	return strings.HasSuffix(string(n), "-bin")
}

func (n HeaderName) String() string { return string(n) }

type errInvalidName struct {
	raw    []byte
	reason string
}

func (e errInvalidName) Error() string { return e.reason }

// CustomMetadata is a single application-defined key/value pair attached to
// a request, response, or trailer.
type CustomMetadata struct {
	Name  HeaderName
	Value []byte
}

// NewCustomMetadata validates value against the rules implied by name's
// binary-ness: ASCII headers must carry only printable-ASCII bytes (with
// surrounding whitespace trimmed first); binary headers accept any bytes.
func NewCustomMetadata(name HeaderName, value []byte) (CustomMetadata, error) {
	if name.IsBinary() {
		cp := make([]byte, len(value))
		copy(cp, value)
		return CustomMetadata{Name: name, Value: cp}, nil
	}
	trimmed := trimASCIISpace(value)
	for _, b := range trimmed {
		if b < 0x20 || b > 0x7E {
			return CustomMetadata{}, errInvalidValue{reason: "ASCII header value must be printable ASCII"}
		}
	}
	cp := make([]byte, len(trimmed))
	copy(cp, trimmed)
	return CustomMetadata{Name: name, Value: cp}, nil
}

type errInvalidValue struct{ reason string }

func (e errInvalidValue) Error() string { return e.reason }

func trimASCIISpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isASCIISpace(b[start]) {
		start++
	}
	for end > start && isASCIISpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isASCIISpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
