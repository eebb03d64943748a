// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import (
	"sort"
	"strings"
)

// CommandTable maps canonical button names ("Volume_Up") to a brand's native
// key codes. It is built once and never mutated.
type CommandTable[K any] struct {
	codes  map[string]K
	folded map[string]string // normalized name -> key in codes
}

// NewCommandTable copies codes into a new table.
func NewCommandTable[K any](codes map[string]K) CommandTable[K] {
	t := CommandTable[K]{
		codes:  make(map[string]K, len(codes)),
		folded: make(map[string]string, len(codes)),
	}

	names := make([]string, 0, len(codes))
	for name, code := range codes {
		t.codes[name] = code
		names = append(names, name)
	}

	// Sorted so that colliding folds resolve the same way every time.
	sort.Strings(names)
	for _, name := range names {
		key := foldName(name)
		if _, exists := t.folded[key]; !exists {
			t.folded[key] = name
		}
	}
	return t
}

// Lookup resolves name by exact match, then with underscores read as
// spaces, then ignoring case and the space/underscore distinction.
func (t CommandTable[K]) Lookup(name string) (K, bool) {
	if code, ok := t.codes[name]; ok {
		return code, true
	}
	if code, ok := t.codes[strings.ReplaceAll(name, "_", " ")]; ok {
		return code, true
	}
	if exact, ok := t.folded[foldName(name)]; ok {
		return t.codes[exact], true
	}
	var zero K
	return zero, false
}

// Names returns the canonical names in the table, sorted.
func (t CommandTable[K]) Names() []string {
	names := make([]string, 0, len(t.codes))
	for name := range t.codes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (t CommandTable[K]) Len() int {
	return len(t.codes)
}

func foldName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}
