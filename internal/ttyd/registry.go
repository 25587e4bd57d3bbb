package ttyd

import "strings"

// Service maps a URL path to an argv template. Argv elements may contain
// "{name}" placeholders, substituted from the client's query-string
// fragments at JSON_DATA time.
type Service struct {
	Path string
	Argv []string
}

// ServiceRegistry holds the configured services in the order they were
// registered. Resolution is a linear scan: spec.md never calls for more than
// a handful of services in a real deployment, so an ordered slice is
// simpler than a map and preserves the original's LIST_FOREACH-in-
// registration-order semantics.
type ServiceRegistry struct {
	services []Service
}

// NewServiceRegistry builds a registry from the given services, preserving
// argument order.
func NewServiceRegistry(services []Service) *ServiceRegistry {
	r := &ServiceRegistry{services: make([]Service, len(services))}
	copy(r.services, services)
	return r
}

// Resolve returns the service registered for path, if any.
func (r *ServiceRegistry) Resolve(path string) (Service, bool) {
	for _, svc := range r.services {
		if svc.Path == path {
			return svc, true
		}
	}
	return Service{}, false
}

// MatchesDirectory reports whether requestPath is an asset (auth_token.js or
// similar) requested inside some registered service's directory: the
// service path up to and including its last "/" (so "/auth_token.js" for a
// service at "/shell"). Any registered service's directory matches.
func (r *ServiceRegistry) MatchesDirectory(requestPath string) bool {
	i := strings.LastIndex(requestPath, "/")
	if i < 0 {
		return false
	}
	dir := requestPath[:i+1]
	for _, svc := range r.services {
		if svc.Path[:strings.LastIndex(svc.Path, "/")+1] == dir {
			return true
		}
	}
	return false
}

// Fragment is one key=value pair parsed from the client's query string.
type Fragment struct {
	Key   string
	Value string
}

// Substitute expands "{name}" placeholders in argv using fragments,
// scanning each argument left to right. The first fragment whose key
// matches wins; a replacement is not itself re-scanned for further
// placeholders, matching the original C implementation's single forward
// pass over the splice result.
func Substitute(argv []string, fragments []Fragment) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		if i == 0 {
			out[i] = arg
			continue
		}
		out[i] = substituteOne(arg, fragments)
	}
	return out
}

func substituteOne(arg string, fragments []Fragment) string {
	var b strings.Builder
	i := 0
	for i < len(arg) {
		if arg[i] != '{' {
			b.WriteByte(arg[i])
			i++
			continue
		}
		end := strings.IndexByte(arg[i+1:], '}')
		if end < 0 {
			b.WriteString(arg[i:])
			break
		}
		name := arg[i+1 : i+1+end]
		if frag, ok := findFragment(fragments, name); ok {
			b.WriteString(frag)
			i = i + 1 + end + 1
			continue
		}
		b.WriteByte(arg[i])
		i++
	}
	return b.String()
}

func findFragment(fragments []Fragment, key string) (string, bool) {
	for _, f := range fragments {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// ParseFragments parses a raw query string ("a=1&b=2") into ordered
// fragments, matching the original's lws_hdr_copy_fragment-over-
// WSI_TOKEN_HTTP_URI_ARGS enumeration order.
func ParseFragments(rawQuery string) []Fragment {
	if rawQuery == "" {
		return nil
	}
	parts := strings.Split(rawQuery, "&")
	fragments := make([]Fragment, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			fragments = append(fragments, Fragment{Key: part})
			continue
		}
		fragments = append(fragments, Fragment{Key: part[:eq], Value: part[eq+1:]})
	}
	return fragments
}
