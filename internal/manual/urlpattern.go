package manual

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// wildcard marks a generalized hostname label or path segment in a stored
// URL pattern. It matches one or more non-slash characters.
const wildcard = "*"

var (
	uuidSegRe    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	numericSegRe = regexp.MustCompile(`^[0-9]+$`)
	localeSegRe  = regexp.MustCompile(`^[a-zA-Z]{2}([_-][a-zA-Z]{2,4})?$`)
	// Short all-caps tokens (NYC, EMEA, R0012) are tenant/location codes on
	// job boards and vary per posting.
	codeSegRe = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,4}$`)
)

// URLToPattern generalizes a concrete URL into a reusable glob pattern:
// deep subdomains collapse to a single wildcard label, and path segments
// that look like identifiers (UUIDs, numbers, locale codes, short location
// codes) become wildcards.
func URLToPattern(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("url %q has no hostname", raw)
	}

	labels := strings.Split(host, ".")
	if len(labels) >= 3 {
		labels = append([]string{wildcard}, labels[len(labels)-2:]...)
	}
	host = strings.Join(labels, ".")

	path := strings.Trim(u.EscapedPath(), "/")
	if path == "" {
		return host, nil
	}
	segs := strings.Split(path, "/")
	for i, seg := range segs {
		if generalizableSegment(seg) {
			segs[i] = wildcard
		}
	}
	return host + "/" + strings.Join(segs, "/"), nil
}

func generalizableSegment(seg string) bool {
	return uuidSegRe.MatchString(seg) ||
		numericSegRe.MatchString(seg) ||
		localeSegRe.MatchString(seg) ||
		codeSegRe.MatchString(seg)
}

// MatchesPattern reports whether a concrete URL matches a stored pattern.
// Both sides are normalized to hostname+path with trailing slashes
// stripped; each wildcard matches one or more non-slash characters and the
// whole string must match.
func MatchesPattern(rawURL, pattern string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	target := strings.TrimRight(u.Hostname()+u.EscapedPath(), "/")
	pattern = strings.TrimRight(pattern, "/")

	escaped := regexp.QuoteMeta(pattern)
	expr := "^" + strings.ReplaceAll(escaped, regexp.QuoteMeta(wildcard), "[^/]+") + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(target)
}
