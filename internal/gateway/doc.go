// Package gateway is the transport adapter between the dashboard and the
// CoAP-to-HTTP/WebSocket gateway.
//
// Every device interaction goes through the gateway:
//
//	GET|POST http://<service>/coap?target=<resource-url>
//	ws://<service>/coap_observe?target=<resource-url>
//	POST     http://<service>/reboot
//
// One-shot requests (Fetch, Send, RebootAll) are never retried; failures are
// logged and returned as ErrRequestFailed or ErrStatus. Observations
// (Subscribe) are retried forever after a flat delay until the caller stops
// them:
//
//	sub := client.Subscribe(ctx, lookupURL, func(msg gateway.Message) error {
//	    links := linkformat.Parse(string(msg.Data))
//	    ...
//	    return nil
//	})
//	defer sub.Stop()
//
// Payloads are JSON by default. CBOR (application/cbor) is supported for
// devices that speak it natively.
package gateway
