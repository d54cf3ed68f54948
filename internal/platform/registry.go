package platform

// Entry describes one registered platform.
type Entry struct {
	New     func() Adapter
	Foreign bool
	Scale   int
}

// registry is the closed set of supported platforms. Order here is the
// canonical presentation order for batch results.
var registry = []struct {
	name  string
	entry Entry
}{
	{"kyobo", Entry{New: func() Adapter { return NewKyobo() }, Scale: 10}},
	{"yes24", Entry{New: func() Adapter { return NewYes24() }, Scale: 10}},
	{"aladin", Entry{New: func() Adapter { return NewAladin() }, Scale: 10}},
	{"sarak", Entry{New: func() Adapter { return NewSarak() }, Scale: 10}},
	{"watcha", Entry{New: func() Adapter { return NewWatcha() }, Scale: 5}},
	{"goodreads", Entry{New: func() Adapter { return NewGoodreads() }, Foreign: true, Scale: 5}},
	{"amazon", Entry{New: func() Adapter { return NewAmazon() }, Foreign: true, Scale: 5}},
	{"librarything", Entry{New: func() Adapter { return NewLibraryThing() }, Foreign: true, Scale: 5}},
}

// Names returns every supported platform name in canonical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, r := range registry {
		names = append(names, r.name)
	}
	return names
}

// Lookup returns the registry entry for name.
func Lookup(name string) (Entry, bool) {
	for _, r := range registry {
		if r.name == name {
			return r.entry, true
		}
	}
	return Entry{}, false
}

// IsForeign reports whether name is a registered foreign platform.
func IsForeign(name string) bool {
	e, ok := Lookup(name)
	return ok && e.Foreign
}

// Filter resolves requested names against the registry, preserving the
// caller's order and silently dropping unknown names and duplicates. A
// nil or empty request selects every platform.
func Filter(requested []string) []string {
	if len(requested) == 0 {
		return Names()
	}
	seen := make(map[string]bool, len(requested))
	selected := make([]string, 0, len(requested))
	for _, name := range requested {
		if seen[name] {
			continue
		}
		if _, ok := Lookup(name); !ok {
			continue
		}
		seen[name] = true
		selected = append(selected, name)
	}
	return selected
}

// Canonical reorders a set of platform names into registry order.
// Permutations of the same set map to the same sequence, which keeps
// cache keys stable.
func Canonical(names []string) []string {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}
	ordered := make([]string, 0, len(names))
	for _, r := range registry {
		if want[r.name] {
			ordered = append(ordered, r.name)
		}
	}
	return ordered
}

// HasForeign reports whether any of names is a foreign platform, which
// is what decides whether a Hangul query needs edition resolution.
func HasForeign(names []string) bool {
	for _, name := range names {
		if IsForeign(name) {
			return true
		}
	}
	return false
}
