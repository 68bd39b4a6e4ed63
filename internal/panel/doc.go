// Package panel serves the dashboard page and its widget fragments.
//
// The page (index.html, luke.js, luke.css) and one HTML fragment per widget
// kind (controller.html.part, display.html.part, dino.html.part) are
// embedded with go:embed. A directory on disk can replace them during
// development. Paths without an extension fall back to index.html; a missing
// asset with an extension is a 404 so the page can tell a widget kind has
// no fragment.
package panel
