package types

import "strings"

// ChangeStatus is a git name-status letter for a changed path
type ChangeStatus string

const (
	StatusAdded    ChangeStatus = "A"
	StatusModified ChangeStatus = "M"
	StatusDeleted  ChangeStatus = "D"
	StatusRenamed  ChangeStatus = "R"
	StatusCopied   ChangeStatus = "C"
	StatusUnknown  ChangeStatus = "?"
)

// ParseChangeStatus reads the leading status letter, ignoring similarity
// scores such as the 100 in R100
func ParseChangeStatus(s string) ChangeStatus {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusUnknown
	}
	switch ChangeStatus(s[:1]) {
	case StatusAdded:
		return StatusAdded
	case StatusModified:
		return StatusModified
	case StatusDeleted:
		return StatusDeleted
	case StatusRenamed:
		return StatusRenamed
	case StatusCopied:
		return StatusCopied
	}
	return StatusUnknown
}

// HasOldSnapshot reports whether the old revision of the path should be read
func (s ChangeStatus) HasOldSnapshot() bool {
	return s == StatusModified || s == StatusRenamed || s == StatusCopied
}

// ChangeSet partitions the union of old and new keys.
// Every slice is sorted; no key appears in more than one slice.
type ChangeSet struct {
	Added     []string
	Deleted   []string
	Modified  []string
	Unchanged []string
}

// Empty reports whether nothing was added, deleted or modified
func (cs ChangeSet) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Deleted) == 0 && len(cs.Modified) == 0
}

// Total returns the number of keys across all four classes
func (cs ChangeSet) Total() int {
	return len(cs.Added) + len(cs.Deleted) + len(cs.Modified) + len(cs.Unchanged)
}
