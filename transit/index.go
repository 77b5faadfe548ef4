package transit

import (
	"sort"
	"strings"
)

// nameIndex supports approximate stop/locality lookup by name prefix.
// Built once per graph version, never mutated afterwards.
type nameIndex struct {
	stopNames     []nameEntry
	localityNames []nameEntry
}

type nameEntry struct {
	key string // normalised name
	id  string
}

func buildNameIndex(g *Graph) *nameIndex {
	idx := &nameIndex{}
	for _, s := range g.stops {
		idx.stopNames = append(idx.stopNames, nameEntry{key: normaliseName(s.Name), id: s.ID})
	}
	for _, l := range g.localities {
		idx.localityNames = append(idx.localityNames, nameEntry{key: normaliseName(l.Name), id: l.ID})
	}
	sort.Slice(idx.stopNames, func(a, b int) bool {
		if idx.stopNames[a].key != idx.stopNames[b].key {
			return idx.stopNames[a].key < idx.stopNames[b].key
		}
		return idx.stopNames[a].id < idx.stopNames[b].id
	})
	sort.Slice(idx.localityNames, func(a, b int) bool {
		if idx.localityNames[a].key != idx.localityNames[b].key {
			return idx.localityNames[a].key < idx.localityNames[b].key
		}
		return idx.localityNames[a].id < idx.localityNames[b].id
	})
	return idx
}

func normaliseName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func prefixMatches(entries []nameEntry, prefix string, limit int) []string {
	prefix = normaliseName(prefix)
	if prefix == "" {
		return nil
	}
	lo := sort.Search(len(entries), func(i int) bool { return entries[i].key >= prefix })
	var ids []string
	for i := lo; i < len(entries) && strings.HasPrefix(entries[i].key, prefix); i++ {
		ids = append(ids, entries[i].id)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids
}

// SearchStops returns up to limit stops whose name starts with prefix
// (case- and whitespace-insensitive).
func (g *Graph) SearchStops(prefix string, limit int) []Stop {
	var out []Stop
	for _, id := range prefixMatches(g.names.stopNames, prefix, limit) {
		if s, ok := g.StopByID(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// SearchLocalities returns up to limit localities whose name starts with
// prefix.
func (g *Graph) SearchLocalities(prefix string, limit int) []Locality {
	var out []Locality
	for _, id := range prefixMatches(g.names.localityNames, prefix, limit) {
		if l, ok := g.LocalityByID(id); ok {
			out = append(out, l)
		}
	}
	return out
}
