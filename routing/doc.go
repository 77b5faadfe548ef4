// Package routing plans multi-modal journeys over a pinned snapshot.
// The search is a time-dependent label-correcting shortest path over
// timetabled trip edges and walking connections, costed with live
// delays, disruption penalties and a wait-time weighting, with
// deterministic tie-breaking so identical queries against the same
// snapshot always rank identically.
package routing
