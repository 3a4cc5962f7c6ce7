package override

import (
	"fmt"
	"sort"
)

// Diff describes how the merged override view changed across a
// [Registry.Replace]. Keys are canonical lookup keys.
type Diff struct {
	Added   []string
	Removed []string
	Changed []string
}

// Empty reports whether the replace was a no-op for the merged view.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// String renders the diff for status lines and logs.
func (d Diff) String() string {
	if d.Empty() {
		return "no changes"
	}
	return fmt.Sprintf("%d added, %d removed, %d changed",
		len(d.Added), len(d.Removed), len(d.Changed))
}

// diffIndex compares two merged views. Server-side timestamps are ignored
// when deciding whether an entry changed, so a refresh that only bumps
// updated_at reports no changes.
func diffIndex(old, new map[string]Override) Diff {
	d := Diff{}

	for key, oldOverride := range old {
		newOverride, exists := new[key]
		if !exists {
			d.Removed = append(d.Removed, key)
			continue
		}
		oldOverride.UpdatedAt = ""
		newOverride.UpdatedAt = ""
		if oldOverride != newOverride {
			d.Changed = append(d.Changed, key)
		}
	}

	for key := range new {
		if _, exists := old[key]; !exists {
			d.Added = append(d.Added, key)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}
