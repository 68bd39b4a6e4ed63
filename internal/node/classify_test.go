package node

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nerrad567/luke-core/internal/linkformat"
)

func link(url string) linkformat.Link {
	return linkformat.Link{URL: url, Anchor: linkformat.Origin(url)}
}

func TestClassifyDevice(t *testing.T) {
	tests := []struct {
		url  string
		want Kind
	}{
		{"coap://[fe80::1]/btn/target", KindController},
		{"coap://[fe80::1]/btn/reboot", KindController},
		{"coap://[fe80::2]/dino/points", KindDino},
		{"coap://gw/resource-lookup", KindRegistry},
		{"coap://[fe80::3]/dsp/points", KindDisplay},
		{"coap://[fe80::3]/dsp/target", KindDisplay},
		{"coap://[fe80::4]/temp", KindUndefined},
		{"", KindUndefined},
		// priority: /btn/ beats /dino/, /dino/ beats /dsp/, lookup beats /dsp/
		{"coap://h/btn/dino/points", KindController},
		{"coap://h/dsp/dino/points", KindDino},
		{"coap://h/dsp/resource-lookup", KindRegistry},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDevice(link(tt.url)))
		})
	}
}

func TestClassifyResource(t *testing.T) {
	tests := []struct {
		url  string
		want ResourceKind
	}{
		{"coap://h/dsp/points", ResourcePoints},
		{"coap://h/btn/target", ResourceTarget},
		{"coap://h/btn/reboot", ResourceReboot},
		{"coap://gw/resource-lookup", ResourceResourceLookup},
		{"coap://h/btn/points/extra", ResourceUndefined},
		{"coap://h/.well-known/core", ResourceUndefined},
		{"", ResourceUndefined},
		// suffix match only: "/target" in the middle does not count
		{"coap://h/target/points", ResourcePoints},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyResource(link(tt.url)))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	l := link("coap://[fe80::9]/dsp/points")
	for range 10 {
		assert.Equal(t, KindDisplay, ClassifyDevice(l))
		assert.Equal(t, ResourcePoints, ClassifyResource(l))
	}
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind(" Display ")
	assert.True(t, ok)
	assert.Equal(t, KindDisplay, k)

	k, ok = ParseKind("toaster")
	assert.False(t, ok)
	assert.Equal(t, KindUndefined, k)
}
