package linkformat

import (
	"regexp"
	"sort"
	"strings"
)

// Link is one entry of a link-format document.
type Link struct {
	// URL is the link target between the angle brackets.
	URL string `json:"url"`

	// Anchor identifies the device that hosts the resource.
	// Empty when the entry carries no anchor parameter.
	Anchor string `json:"anchor"`

	// Attributes holds every other parameter. Flags without a value map to "".
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Parse splits a link-format body into its entries.
//
// Entries are separated by commas outside of angle brackets and quoted
// strings. An entry without a <target> or with an unterminated bracket or
// quote is dropped; a body that contains no valid entry yields an empty slice.
// Parse never fails.
func Parse(body string) []Link {
	links := make([]Link, 0)
	for _, raw := range splitEntries(body) {
		link, ok := parseEntry(raw)
		if !ok {
			continue
		}
		links = append(links, link)
	}
	return links
}

// splitEntries splits on top-level commas. An unterminated bracket or quote
// swallows the rest of the body, which parseEntry then rejects.
func splitEntries(body string) []string {
	var (
		entries  []string
		inQuote  bool
		inTarget bool
		start    int
	)
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c == '\\' && inQuote:
			i++
		case c == '"' && !inTarget:
			inQuote = !inQuote
		case c == '<' && !inQuote:
			inTarget = true
		case c == '>' && !inQuote:
			inTarget = false
		case c == ',' && !inQuote && !inTarget:
			entries = append(entries, body[start:i])
			start = i + 1
		}
	}
	return append(entries, body[start:])
}

func parseEntry(raw string) (Link, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "<") {
		return Link{}, false
	}
	end := strings.IndexByte(raw, '>')
	if end < 0 {
		return Link{}, false
	}

	link := Link{URL: strings.TrimSpace(raw[1:end])}
	if link.URL == "" {
		return Link{}, false
	}

	params, ok := splitParams(raw[end+1:])
	if !ok {
		return Link{}, false
	}
	for _, p := range params {
		key, value := parseParam(p)
		if key == "" {
			continue
		}
		if key == "anchor" {
			link.Anchor = value
			continue
		}
		if link.Attributes == nil {
			link.Attributes = make(map[string]string)
		}
		link.Attributes[key] = value
	}
	return link, true
}

// splitParams splits the text after the target on semicolons outside quotes.
// It reports false for an unterminated quote.
func splitParams(s string) ([]string, bool) {
	var (
		params  []string
		inQuote bool
		start   int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				params = append(params, s[start:i])
				start = i + 1
			}
		}
	}
	if inQuote {
		return nil, false
	}
	params = append(params, s[start:])
	return params, true
}

func parseParam(p string) (key, value string) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ""
	}
	eq := strings.IndexByte(p, '=')
	if eq < 0 {
		return strings.ToLower(p), ""
	}
	key = strings.ToLower(strings.TrimSpace(p[:eq]))
	value = strings.TrimSpace(p[eq+1:])
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = strings.ReplaceAll(value[1:len(value)-1], `\"`, `"`)
	}
	return key, value
}

// String renders the link back into link-format. Attributes are written in
// key order so the output is stable.
func (l Link) String() string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(l.URL)
	b.WriteString(">")
	if l.Anchor != "" {
		b.WriteString(`;anchor="`)
		b.WriteString(l.Anchor)
		b.WriteString(`"`)
	}
	keys := make([]string, 0, len(l.Attributes))
	for k := range l.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(";")
		b.WriteString(k)
		if v := l.Attributes[k]; v != "" {
			b.WriteString(`="`)
			b.WriteString(strings.ReplaceAll(v, `"`, `\"`))
			b.WriteString(`"`)
		}
	}
	return b.String()
}

// addrPathPattern matches coap://host[:port]/path and its coaps variant.
var addrPathPattern = regexp.MustCompile(`^coaps?://([^/]+)(/.*)$`)

// SplitURL splits a CoAP URL into its authority and path, the pair a target
// resource expects when it is pointed at another device.
//
// Example:
//
//	addr, path, _ := SplitURL("coap://[2001:db8::1]:5683/dsp/points")
//	// addr = "[2001:db8::1]:5683", path = "/dsp/points"
func SplitURL(url string) (addr, path string, ok bool) {
	m := addrPathPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Origin returns the scheme://authority prefix of a CoAP URL, which is how a
// device's anchor is written. It returns "" for URLs that are not CoAP.
func Origin(url string) string {
	addr, _, ok := SplitURL(url)
	if !ok {
		return ""
	}
	scheme := "coap://"
	if strings.HasPrefix(url, "coaps://") {
		scheme = "coaps://"
	}
	return scheme + addr
}
