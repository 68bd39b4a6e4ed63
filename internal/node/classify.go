package node

import (
	"strings"

	"github.com/nerrad567/luke-core/internal/linkformat"
)

type devicePattern struct {
	match func(url string) bool
	kind  Kind
}

type resourcePattern struct {
	suffix string
	kind   ResourceKind
}

func contains(s string) func(string) bool {
	return func(url string) bool { return strings.Contains(url, s) }
}

func suffix(s string) func(string) bool {
	return func(url string) bool { return strings.HasSuffix(url, s) }
}

// devicePatterns is evaluated in order; the first match wins.
var devicePatterns = []devicePattern{
	{contains("/btn/"), KindController},
	{contains("/dino/"), KindDino},
	{suffix("/resource-lookup"), KindRegistry},
	{contains("/dsp/"), KindDisplay},
}

var resourcePatterns = []resourcePattern{
	{"/points", ResourcePoints},
	{"/target", ResourceTarget},
	{"/reboot", ResourceReboot},
	{"/resource-lookup", ResourceResourceLookup},
}

// ClassifyDevice returns the device kind implied by a link's URL.
// Links matching no pattern are KindUndefined.
func ClassifyDevice(link linkformat.Link) Kind {
	for _, p := range devicePatterns {
		if p.match(link.URL) {
			return p.kind
		}
	}
	return KindUndefined
}

// ClassifyResource returns the resource kind implied by a link's URL suffix.
// Links matching no pattern are ResourceUndefined.
func ClassifyResource(link linkformat.Link) ResourceKind {
	for _, p := range resourcePatterns {
		if strings.HasSuffix(link.URL, p.suffix) {
			return p.kind
		}
	}
	return ResourceUndefined
}
