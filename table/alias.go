package table

import (
	"sort"
	"strings"
)

// maxAliasDepth bounds chained alias resolution so definition cycles
// terminate instead of spinning.
const maxAliasDepth = 16

// AliasMap maps symbolic name prefixes to concrete field name prefixes.
//
// Aliases are applied at lookup time by Schema.Find: the longest alias that
// is a prefix of the looked-up name is substituted, repeatedly, until no
// alias matches. Changing an alias never moves stored data; it only changes
// which field a symbolic name resolves to. This is the indirection behind
// "slots" (e.g. "slot_Centroid" -> "centroid_sdss").
type AliasMap struct {
	entries  map[string]string
	observer func(alias string)
}

// NewAliasMap creates an empty alias map.
func NewAliasMap() *AliasMap {
	return &AliasMap{entries: make(map[string]string)}
}

// Set defines or redefines an alias. The registered observer, if any, is
// notified after the change.
func (am *AliasMap) Set(alias, target string) {
	am.entries[alias] = target
	if am.observer != nil {
		am.observer(alias)
	}
}

// Erase removes an alias. Removing an absent alias is a no-op.
func (am *AliasMap) Erase(alias string) {
	if _, ok := am.entries[alias]; !ok {
		return
	}
	delete(am.entries, alias)
	if am.observer != nil {
		am.observer(alias)
	}
}

// Get returns the direct target of an alias, or "" if undefined.
func (am *AliasMap) Get(alias string) string {
	return am.entries[alias]
}

// Len returns the number of aliases defined.
func (am *AliasMap) Len() int { return len(am.entries) }

// Items returns the alias pairs sorted by alias name.
func (am *AliasMap) Items() [][2]string {
	out := make([][2]string, 0, len(am.entries))
	for k, v := range am.entries {
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })

	return out
}

// Apply resolves a name through the alias map: the longest alias that is a
// prefix of name is substituted, and the process repeats (aliases chain)
// until no alias applies or the depth bound is hit.
func (am *AliasMap) Apply(name string) string {
	for depth := 0; depth < maxAliasDepth; depth++ {
		best := ""
		for alias := range am.entries {
			if len(alias) > len(best) && strings.HasPrefix(name, alias) {
				best = alias
			}
		}
		if best == "" {
			return name
		}
		name = am.entries[best] + name[len(best):]
	}

	return name
}

// setObserver registers the callback invoked on every alias change. Used by
// tables to recompute cached slot keys.
func (am *AliasMap) setObserver(fn func(alias string)) {
	am.observer = fn
}

// clone returns a deep copy sharing no state (observers are not copied).
func (am *AliasMap) clone() *AliasMap {
	out := NewAliasMap()
	for k, v := range am.entries {
		out.entries[k] = v
	}

	return out
}
