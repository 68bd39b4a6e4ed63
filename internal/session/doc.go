// Package session holds the dashboard state and drives the gateway.
//
// A Session is built from explicit dependencies (registry, transport,
// discovery descriptor and optional notifier, recorder, telemetry and
// publisher). Start observes the discovery resource; every update is parsed
// into the registry and followed by loadTargets:
//
//	controller, display, dino:
//	    display: observe points
//	    each:    GET target
//
// Responses and observation messages are dispatched by resource kind.
// Points readings and link changes are pushed out as Events.
//
// Link and Unlink write a device's target resource. Reboot, RebootAll and
// HideWidget need a Confirmer to approve them and return ErrNotConfirmed
// otherwise, without contacting any device.
package session
