// Package differ classifies the functions of two snapshots of a file.
package differ

import (
	"sort"

	"github.com/dshills/docsplice/internal/keyer"
	"github.com/dshills/docsplice/pkg/types"
)

// Classify partitions the union of previous and current keys into added, deleted,
// modified and unchanged keys. A key is modified when both snapshots hold it
// with different hashes.
func Classify(prev, cur types.FunctionSet) types.ChangeSet {
	var cs types.ChangeSet

	for key, rec := range cur {
		before, ok := prev[key]
		switch {
		case !ok:
			cs.Added = append(cs.Added, key)
		case before.ContentHash != rec.ContentHash:
			cs.Modified = append(cs.Modified, key)
		default:
			cs.Unchanged = append(cs.Unchanged, key)
		}
	}

	for key := range prev {
		if _, ok := cur[key]; !ok {
			cs.Deleted = append(cs.Deleted, key)
		}
	}

	sort.Strings(cs.Added)
	sort.Strings(cs.Deleted)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Unchanged)

	return cs
}

// Changed returns the keys that drive re-documentation: added and modified.
// Deleted keys never do.
func Changed(cs types.ChangeSet) []string {
	keys := make([]string, 0, len(cs.Added)+len(cs.Modified))
	keys = append(keys, cs.Added...)
	keys = append(keys, cs.Modified...)
	sort.Strings(keys)
	return keys
}

// LinesOfInterest returns the sorted start lines, in the current snapshot,
// of the given keys. Keys absent from cur are ignored.
func LinesOfInterest(cur types.FunctionSet, keys []string) []int {
	lines := make([]int, 0, len(keys))
	seen := make(map[int]bool, len(keys))
	for _, key := range keys {
		rec, ok := cur[key]
		if !ok || seen[rec.StartLine] {
			continue
		}
		seen[rec.StartLine] = true
		lines = append(lines, rec.StartLine)
	}
	sort.Ints(lines)
	return lines
}

// Kind labels an entry of a change report
type Kind string

const (
	KindAdded    Kind = "added"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
)

// Entry is one reported function change
type Entry struct {
	Kind Kind   `json:"kind"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Describe lists the changes of cs with display names. Added and modified
// entries carry their current line, deleted entries their previous line. Entries are
// grouped by kind and sorted by name within a kind.
func Describe(prev, cur types.FunctionSet, cs types.ChangeSet) []Entry {
	entries := make([]Entry, 0, len(cs.Added)+len(cs.Modified)+len(cs.Deleted))

	appendKind := func(kind Kind, keys []string, set types.FunctionSet) {
		group := make([]Entry, 0, len(keys))
		for _, key := range keys {
			group = append(group, Entry{
				Kind: kind,
				Key:  key,
				Name: keyer.HumanName(key),
				Line: set[key].StartLine,
			})
		}
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Name == group[j].Name {
				return group[i].Line < group[j].Line
			}
			return group[i].Name < group[j].Name
		})
		entries = append(entries, group...)
	}

	appendKind(KindAdded, cs.Added, cur)
	appendKind(KindModified, cs.Modified, cur)
	appendKind(KindDeleted, cs.Deleted, prev)

	return entries
}
