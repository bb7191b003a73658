package metadata

import (
	"fmt"
	"net/url"
	"strings"
)

// Fields is the transport-agnostic carrier for a block of wire headers or
// trailers: lowercase name to one-or-more string values, exactly as HTTP/2
// HEADERS frames deliver them (binary values still base64-coded).
type Fields map[string][]string

func (f Fields) get(name string) (string, bool) {
	vs := f[name]
	if len(vs) == 0 {
		return "", false
	}
	return strings.Join(vs, ","), true
}

// PeerMissingPseudoHeaderError reports that a mandatory HTTP/2 pseudo-header
// was absent from an inbound request. The Name distinguishes which
// pseudo-header was missing (":method", ":path", ":authority", ...),
// standing in for the spec's family of PeerMissingPseudoHeader* variants.
type PeerMissingPseudoHeaderError struct {
	Name string
}

func (e *PeerMissingPseudoHeaderError) Error() string {
	return fmt.Sprintf("peer did not send required pseudo-header %q", e.Name)
}

// RequestPseudoHeaders holds the four HTTP/2 pseudo-headers the server role
// adapter must validate before parsing the rest of the request headers.
type RequestPseudoHeaders struct {
	Method    string
	Scheme    string
	Path      Path
	Authority string
}

// ParseRequestPseudoHeaders validates :method, :scheme, :path, and
// :authority. Unlike the rest of header parsing, failures here are fatal
// (returned as a *PeerMissingPseudoHeaderError or a plain error for a
// malformed :path) rather than accumulated, per the engine's pseudo-header
// contract.
func ParseRequestPseudoHeaders(raw Fields) (RequestPseudoHeaders, error) {
	method, ok := raw.get(":method")
	if !ok {
		return RequestPseudoHeaders{}, &PeerMissingPseudoHeaderError{Name: ":method"}
	}
	if method != "POST" {
		return RequestPseudoHeaders{}, fmt.Errorf(":method must be POST, got %q", method)
	}
	scheme, ok := raw.get(":scheme")
	if !ok {
		return RequestPseudoHeaders{}, &PeerMissingPseudoHeaderError{Name: ":scheme"}
	}
	rawPath, ok := raw.get(":path")
	if !ok {
		return RequestPseudoHeaders{}, &PeerMissingPseudoHeaderError{Name: ":path"}
	}
	path, err := ParsePath(rawPath)
	if err != nil {
		return RequestPseudoHeaders{}, err
	}
	authority, ok := raw.get(":authority")
	if !ok {
		return RequestPseudoHeaders{}, &PeerMissingPseudoHeaderError{Name: ":authority"}
	}
	return RequestPseudoHeaders{Method: method, Scheme: scheme, Path: path, Authority: authority}, nil
}

// RequestHeaders is the typed record produced from the non-pseudo headers of
// a gRPC request.
type RequestHeaders struct {
	ContentType    string
	Format         string // subtype after "application/grpc+"; "" means bare "application/grpc"
	Timeout        string // raw grpc-timeout value, already validated; "" if absent
	Encoding       string // grpc-encoding: the compression applied to request messages
	AcceptEncoding []string
	UserAgent      string
	Custom         []CustomMetadata
	Unrecognized   []RawHeader
}

var requestSemanticNames = map[string]struct{}{
	"content-type":         {},
	"grpc-timeout":         {},
	"grpc-encoding":        {},
	"grpc-accept-encoding": {},
	"user-agent":           {},
}

// ParseRequestHeaders consumes the recognized semantic headers (content
// type, timeout, encoding, accept-encoding, user-agent) into a typed
// RequestHeaders, routes application headers into Custom, routes unknown
// grpc-reserved headers into Unrecognized for faithful round-tripping, and
// accumulates every failure into the returned InvalidHeaders.
func ParseRequestHeaders(raw Fields) (RequestHeaders, InvalidHeaders) {
	var h RequestHeaders
	var invalid InvalidHeaders

	if ct, ok := raw.get("content-type"); ok {
		h.ContentType, h.Format = parseContentType(ct)
		if h.ContentType != "application/grpc" {
			invalid.addBad(400, "content-type", "unsupported content-type for a gRPC request", []byte(ct))
		}
	} else {
		invalid.addMissing(400, "content-type", "request must specify content-type")
	}

	if v, ok := raw.get("grpc-timeout"); ok {
		if _, err := ParseTimeout(v); err != nil {
			invalid.addBad(400, "grpc-timeout", err.Error(), []byte(v))
		} else {
			h.Timeout = v
		}
	}

	if v, ok := raw.get("grpc-encoding"); ok {
		h.Encoding = v
	}
	if v, ok := raw.get("grpc-accept-encoding"); ok {
		for _, e := range strings.Split(v, ",") {
			e = strings.TrimSpace(e)
			if e != "" {
				h.AcceptEncoding = append(h.AcceptEncoding, e)
			}
		}
	}
	if v, ok := raw.get("user-agent"); ok {
		h.UserAgent = v
	}

	parseRemaining(raw, requestSemanticNames, &h.Custom, &h.Unrecognized, &invalid)

	return h, invalid
}

// ResponseHeaders is the typed record produced from the non-pseudo headers
// of a gRPC response (the initial HEADERS frame, not the trailing one).
type ResponseHeaders struct {
	ContentType    string
	Format         string
	Encoding       string
	AcceptEncoding []string
	Custom         []CustomMetadata
	Unrecognized   []RawHeader
}

var responseSemanticNames = map[string]struct{}{
	"content-type":         {},
	"grpc-encoding":        {},
	"grpc-accept-encoding": {},
}

// ParseResponseHeaders mirrors ParseRequestHeaders for the client role.
// Mandatory-field failures (ContentHeadersInvalid in spec terms) surface via
// the returned InvalidHeaders; the client role adapter aborts the call with
// a non-empty InvalidHeaders as the error.
func ParseResponseHeaders(raw Fields) (ResponseHeaders, InvalidHeaders) {
	var h ResponseHeaders
	var invalid InvalidHeaders

	if ct, ok := raw.get("content-type"); ok {
		h.ContentType, h.Format = parseContentType(ct)
		if h.ContentType != "application/grpc" {
			invalid.addBad(400, "content-type", "unsupported content-type in gRPC response", []byte(ct))
		}
	} else {
		invalid.addMissing(400, "content-type", "response must specify content-type")
	}

	if v, ok := raw.get("grpc-encoding"); ok {
		h.Encoding = v
	}
	if v, ok := raw.get("grpc-accept-encoding"); ok {
		for _, e := range strings.Split(v, ",") {
			e = strings.TrimSpace(e)
			if e != "" {
				h.AcceptEncoding = append(h.AcceptEncoding, e)
			}
		}
	}

	parseRemaining(raw, responseSemanticNames, &h.Custom, &h.Unrecognized, &invalid)

	return h, invalid
}

// Trailers is the typed record produced from a gRPC trailer block (or from
// the combined headers+trailers of a Trailers-Only response).
type Trailers struct {
	StatusCode   int32
	Message      string
	Custom       []CustomMetadata
	Unrecognized []RawHeader
}

var trailerSemanticNames = map[string]struct{}{
	"grpc-status":  {},
	"grpc-message": {},
}

// ParseTrailers consumes grpc-status (mandatory) and grpc-message (optional,
// percent-decoded), routing everything else exactly like ParseRequestHeaders.
func ParseTrailers(raw Fields) (Trailers, InvalidHeaders) {
	var t Trailers
	var invalid InvalidHeaders

	if v, ok := raw.get("grpc-status"); ok {
		var code int64
		if _, err := fmt.Sscanf(v, "%d", &code); err != nil {
			invalid.addBad(400, "grpc-status", "grpc-status must be an integer", []byte(v))
		} else {
			t.StatusCode = int32(code)
		}
	} else {
		invalid.addMissing(400, "grpc-status", "trailers must include grpc-status")
	}

	if v, ok := raw.get("grpc-message"); ok {
		if msg, err := url.QueryUnescape(v); err == nil {
			t.Message = msg
		} else {
			t.Message = v
		}
	}

	parseRemaining(raw, trailerSemanticNames, &t.Custom, &t.Unrecognized, &invalid)

	return t, invalid
}

// parseContentType splits "application/grpc" or "application/grpc+<format>"
// into its base type and format suffix.
func parseContentType(ct string) (base, format string) {
	const prefix = "application/grpc"
	if !strings.HasPrefix(ct, prefix) {
		return ct, ""
	}
	rest := ct[len(prefix):]
	if rest == "" {
		return prefix, ""
	}
	if rest[0] == '+' {
		return prefix, rest[1:]
	}
	return ct, ""
}

// parseRemaining walks every header not already consumed as a pseudo-header
// or named semantic field, routing it into custom metadata, the
// unrecognized bucket, or InvalidHeaders. Reserved transport-level names
// (see reservedNames: te, content-type, ...) are skipped, so the "te:
// trailers" a request carries, or the response headers merged into a
// Trailers-Only block, are not reported as invalid.
func parseRemaining(raw Fields, semantic map[string]struct{}, custom *[]CustomMetadata, unrecognized *[]RawHeader, invalid *InvalidHeaders) {
	for name, values := range raw {
		if strings.HasPrefix(name, ":") {
			continue
		}
		if _, ok := semantic[name]; ok {
			continue
		}
		if _, ok := reservedNames[name]; ok {
			continue
		}
		joined := strings.Join(values, ",")
		if strings.HasPrefix(name, "grpc-") {
			*unrecognized = append(*unrecognized, RawHeader{Name: name, Value: []byte(joined)})
			continue
		}
		hn, err := NewHeaderName([]byte(name))
		if err != nil {
			invalid.addBad(400, name, err.Error(), []byte(joined))
			continue
		}
		value := []byte(joined)
		if hn.IsBinary() {
			decoded, derr := decodeBinaryValues(values)
			if derr != nil {
				invalid.addBad(400, name, derr.Error(), []byte(joined))
				continue
			}
			value = decoded
		}
		cm, err := NewCustomMetadata(hn, value)
		if err != nil {
			invalid.addBad(400, name, err.Error(), []byte(joined))
			continue
		}
		*custom = append(*custom, cm)
	}
}
