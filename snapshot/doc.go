// Package snapshot assembles immutable, versioned views of the transit
// network for query evaluation. A snapshot binds one graph version to
// the disruption and live-tracking state captured at publication time;
// queries pin the snapshot they started on and never observe feed
// updates mid-evaluation.
package snapshot
