// Package transit holds the immutable, versioned transit graph model:
// stops, localities, routes, scheduled trips and walking connections.
//
// A graph version is built wholesale from a reference Dataset and never
// mutated afterwards; construction fails fast on referential-integrity
// violations rather than producing a partial graph. Every other component
// reads this substrate through the snapshot it was issued against.
package transit
