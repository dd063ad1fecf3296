package storage

import (
	"os"
	"sort"
)

// EnsureDir ensures a directory exists with default permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// SortGrants orders grants by position, then creation date.
func SortGrants(grants []ScheduledGrant) {
	sort.SliceStable(grants, func(i, j int) bool {
		if grants[i].Position != grants[j].Position {
			return grants[i].Position < grants[j].Position
		}
		return grants[i].CreatedDate.Before(grants[j].CreatedDate)
	})
}
