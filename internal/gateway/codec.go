package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"

	"github.com/fxamacker/cbor/v2"
)

// Content formats understood by the gateway.
const (
	ContentJSON       = "application/json"
	ContentCBOR       = "application/cbor"
	ContentLinkFormat = "application/link-format"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient decoding: duplicate keys keep the last value.
	decOpts := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyQuiet,
		IndefLength:     cbor.IndefLengthAllowed,
		MaxNestedLevels: 16,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// mediaType strips parameters from a Content-Type header value.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mt
}

// Encode serialises v for the given content type. A []byte payload is sent
// unchanged. An empty content type means JSON.
func Encode(contentType string, v any) ([]byte, error) {
	if raw, ok := v.([]byte); ok {
		return raw, nil
	}

	switch mediaType(contentType) {
	case "", ContentJSON:
		return json.Marshal(v)
	case ContentCBOR:
		return encMode.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
}

// Decode parses data of the given content type into v.
//
// An empty body, and the JSON literal null, leave v untouched: the gateway
// maps an empty CoAP payload to either form.
func Decode(contentType string, data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}

	switch mediaType(contentType) {
	case "", ContentJSON:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return nil
		}
		return json.Unmarshal(trimmed, v)
	case ContentCBOR:
		return decMode.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
}

// DecodePayload decodes a gateway response body according to its
// Content-Type header.
func DecodePayload(resp *Response, v any) error {
	return Decode(resp.ContentType, resp.Body, v)
}
