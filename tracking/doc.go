// Package tracking stores live vehicle positions and classifies them as
// fresh or stale.
//
// Only fresh positions (within the freshness window, default 5 minutes)
// from sources that are still producing data feed delay estimation.
// Everything else falls back to scheduled times, and the routing engine
// tags the affected legs accordingly.
package tracking
