package metadata

import (
	"fmt"
	"strings"
)

// Path identifies an RPC method: a service name and a method name, both
// ASCII, rendered on the wire as "/<service>/<method>".
type Path struct {
	Service string
	Method  string
}

func (p Path) String() string {
	return "/" + p.Service + "/" + p.Method
}

// ParsePath parses the HTTP/2 :path pseudo-header into a Path. The leading
// slash is mandatory and there must be exactly one internal slash
// separating the service and method names.
func ParsePath(raw string) (Path, error) {
	if len(raw) == 0 || raw[0] != '/' {
		return Path{}, fmt.Errorf("path %q must start with '/'", raw)
	}
	rest := raw[1:]
	idx := strings.Index(rest, "/")
	if idx <= 0 || idx == len(rest)-1 || strings.Contains(rest[idx+1:], "/") {
		return Path{}, fmt.Errorf("path %q must have the form /service/method", raw)
	}
	return Path{Service: rest[:idx], Method: rest[idx+1:]}, nil
}
