// Package feed normalizes heterogeneous operator live feeds into one
// canonical stream of vehicle positions and disruptions.
//
// Operator payloads arrive already deserialized into a generic RawEvent
// shape, either by HTTP polling (Poller), a NATS subject (SubscribeNATS)
// or a GTFS-Realtime message (FromGTFSRT). The Normalizer maps operator
// status vocabularies onto the canonical enumeration, deduplicates
// repeats, and drops events referencing unknown routes or stops. All
// feed-level faults are absorbed at this boundary.
package feed
