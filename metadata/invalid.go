package metadata

import (
	"fmt"
	"strings"

	"github.com/grpcwire/engine/codes"
)

// RawHeader is an (name, value) pair that did not map to any field the
// engine recognizes; it is carried, unmodified, in the Unrecognized bucket
// of a parsed header record so that serialization can round-trip it.
type RawHeader struct {
	Name  string
	Value []byte
}

// InvalidHeaderKind distinguishes why a header entry could not be used.
type InvalidHeaderKind int

const (
	// InvalidHeaderBad means the header was present but failed validation
	// (bad character class, non-ASCII value, malformed pseudo-header, ...).
	InvalidHeaderBad InvalidHeaderKind = iota
	// InvalidHeaderMissing means a mandatory header was absent.
	InvalidHeaderMissing
	// InvalidHeaderUnexpected means a header appeared in a context where the
	// protocol forbids it (e.g. a second :path pseudo-header).
	InvalidHeaderUnexpected
)

// InvalidHeader records one header-level parse failure. Status, when
// non-zero, is the HTTP status this failure implies; the first InvalidHeader
// in an InvalidHeaders slice with a non-zero Status wins.
type InvalidHeader struct {
	Kind   InvalidHeaderKind
	Status int
	Name   string
	Value  []byte
	Reason string
}

// InvalidHeaders accumulates every header-level parse failure encountered
// while parsing one header block. It is never used to signal failure via a
// Go error return; parsing always produces a best-effort record alongside
// whatever InvalidHeaders it collects.
type InvalidHeaders []InvalidHeader

// HTTPStatus returns the HTTP status that should be reported for this set of
// failures: the first explicit Status present, else 400 if there is any
// failure at all, else 0 (no failures).
func (ih InvalidHeaders) HTTPStatus() int {
	for _, h := range ih {
		if h.Status != 0 {
			return h.Status
		}
	}
	if len(ih) > 0 {
		return 400
	}
	return 0
}

// GrpcStatus returns the gRPC status code implied by this set of failures,
// derived from the corresponding HTTP status via codes.FromHTTPStatus. It
// returns codes.OK if there are no failures.
func (ih InvalidHeaders) GrpcStatus() codes.Code {
	status := ih.HTTPStatus()
	if status == 0 {
		return codes.OK
	}
	return codes.FromHTTPStatus(status)
}

// Error renders InvalidHeaders as a Go error, so a role adapter that needs
// to abort a call on malformed headers can pass the slice directly where
// an error is expected.
func (ih InvalidHeaders) Error() string {
	if len(ih) == 0 {
		return "metadata: no invalid headers"
	}
	parts := make([]string, len(ih))
	for i, h := range ih {
		parts[i] = fmt.Sprintf("%s: %s", h.Name, h.Reason)
	}
	return "metadata: invalid headers: " + strings.Join(parts, "; ")
}

func (ih *InvalidHeaders) addBad(status int, name, reason string, value []byte) {
	*ih = append(*ih, InvalidHeader{Kind: InvalidHeaderBad, Status: status, Name: name, Value: value, Reason: reason})
}

func (ih *InvalidHeaders) addMissing(status int, name, reason string) {
	*ih = append(*ih, InvalidHeader{Kind: InvalidHeaderMissing, Status: status, Name: name, Reason: reason})
}
