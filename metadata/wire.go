package metadata

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// binaryEncoding is the base64 variant used for "-bin" header values on the
// wire: standard alphabet, no padding, per the engine's external interface.
var binaryEncoding = base64.RawStdEncoding

func decodeBinaryValues(values []string) ([]byte, error) {
	var out []byte
	for _, v := range values {
		b, err := binaryEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("malformed base64 in binary header value: %w", err)
		}
		out = append(out, b...)
	}
	return out, nil
}

func encodeBinaryValue(b []byte) string {
	return binaryEncoding.EncodeToString(b)
}

// addCustomAndUnrecognized appends the wire rendering of the given custom
// metadata entries plus the preserved unrecognized raw headers into dst.
func addCustomAndUnrecognized(dst Fields, custom []CustomMetadata, unrecognized []RawHeader) {
	for _, cm := range custom {
		name := string(cm.Name)
		value := string(cm.Value)
		if cm.Name.IsBinary() {
			value = encodeBinaryValue(cm.Value)
		}
		dst[name] = append(dst[name], value)
	}
	for _, rh := range unrecognized {
		dst[rh.Name] = append(dst[rh.Name], string(rh.Value))
	}
}

// SerializeRequestHeaders is the inverse of ParseRequestHeaders: it renders
// h (plus the :method/:scheme/:path/:authority pseudo-headers) back into
// wire Fields.
func SerializeRequestHeaders(pseudo RequestPseudoHeaders, h RequestHeaders) Fields {
	f := Fields{
		":method":    {"POST"},
		":scheme":    {pseudo.Scheme},
		":path":      {pseudo.Path.String()},
		":authority": {pseudo.Authority},
	}
	ct := h.ContentType
	if ct == "" {
		ct = "application/grpc"
	}
	if h.Format != "" {
		ct = ct + "+" + h.Format
	}
	f["content-type"] = []string{ct}
	if h.Timeout != "" {
		f["grpc-timeout"] = []string{h.Timeout}
	}
	if h.Encoding != "" {
		f["grpc-encoding"] = []string{h.Encoding}
	}
	if len(h.AcceptEncoding) > 0 {
		f["grpc-accept-encoding"] = []string{strings.Join(h.AcceptEncoding, ",")}
	}
	if h.UserAgent != "" {
		f["user-agent"] = []string{h.UserAgent}
	}
	addCustomAndUnrecognized(f, h.Custom, h.Unrecognized)
	return f
}

// SerializeResponseHeaders is the inverse of ParseResponseHeaders.
func SerializeResponseHeaders(h ResponseHeaders) Fields {
	f := Fields{}
	ct := h.ContentType
	if ct == "" {
		ct = "application/grpc"
	}
	if h.Format != "" {
		ct = ct + "+" + h.Format
	}
	f["content-type"] = []string{ct}
	if h.Encoding != "" {
		f["grpc-encoding"] = []string{h.Encoding}
	}
	if len(h.AcceptEncoding) > 0 {
		f["grpc-accept-encoding"] = []string{strings.Join(h.AcceptEncoding, ",")}
	}
	addCustomAndUnrecognized(f, h.Custom, h.Unrecognized)
	return f
}

// SerializeTrailers is the inverse of ParseTrailers. grpc-message is
// percent-encoded per the external interface (percent-encoded UTF-8).
func SerializeTrailers(t Trailers) Fields {
	f := Fields{
		"grpc-status": {fmt.Sprintf("%d", t.StatusCode)},
	}
	if t.Message != "" {
		f["grpc-message"] = []string{url.QueryEscape(t.Message)}
	}
	addCustomAndUnrecognized(f, t.Custom, t.Unrecognized)
	return f
}
