// Package linkformat parses CoRE link-format documents as returned by a
// resource directory lookup.
//
// A discovery body looks like:
//
//	<coap://[fe80::1]/btn/target>;anchor="coap://[fe80::1]";rt="luke.target",
//	<coap://[fe80::2]/dsp/points>;anchor="coap://[fe80::2]"
//
// Parse turns it into an ordered slice of Link values. Parsing is lenient:
// malformed entries are skipped rather than reported, since a discovery
// stream is re-sent often and the next update will usually be complete.
package linkformat
