// Package api implements the HTTP REST API and WebSocket server of the
// dashboard.
//
// This package provides:
//   - the dashboard page and the gateway configuration document
//   - REST endpoints for nodes, links, reboots and the action history
//   - a WebSocket hub that relays session events to the page
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server sits between the browser and the session. The page never talks
// to the gateway directly: it reads the state from /api/v1/nodes, listens on
// /api/v1/ws and sends link, reboot and hide actions back through the API.
// The session performs them through the gateway and broadcasts the result
// through the hub.
//
// Actions that the page guards with a confirm() dialog are refused with 409
// and code "not_confirmed" unless the request carries the confirmation.
package api
