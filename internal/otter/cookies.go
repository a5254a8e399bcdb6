package otter

import (
	"net/http"
	"sort"
	"strings"
)

// cookieJar holds the session cookies for one authenticated identity as a
// flat name→value map. Last write wins on duplicate names. The jar is
// replaced wholesale on every successful login and never merged across
// logins.
type cookieJar struct {
	values map[string]string
}

func newCookieJar() *cookieJar {
	return &cookieJar{values: make(map[string]string)}
}

// setAll records every cookie from a response, overwriting existing names.
func (j *cookieJar) setAll(cookies []*http.Cookie) {
	for _, ck := range cookies {
		j.values[ck.Name] = ck.Value
	}
}

func (j *cookieJar) get(name string) string { return j.values[name] }

func (j *cookieJar) empty() bool { return len(j.values) == 0 }

// header serializes the jar into a single Cookie header value. Names are
// sorted so the header is stable from request to request.
func (j *cookieJar) header() string {
	if len(j.values) == 0 {
		return ""
	}
	names := make([]string, 0, len(j.values))
	for name := range j.values {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(j.values[name])
	}
	return sb.String()
}
