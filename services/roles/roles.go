// Package roles reconciles the community's managed roles: rules
// compute who should hold each role, the engine diffs that against
// reality and applies the difference.
package roles

import (
	"slices"
	"sort"
)

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

type Change struct {
	MemberID string
	Op       Op
	RoleID   string
}

// EvaluateChanges diffs one member against one role's target set. The
// result is empty when the member already matches.
func EvaluateChanges(memberID string, memberRoles []string, target map[string]bool, roleID string) []Change {
	hasRole := slices.Contains(memberRoles, roleID)
	inTarget := target[memberID]
	switch {
	case inTarget && !hasRole:
		return []Change{{MemberID: memberID, Op: OpAdd, RoleID: roleID}}
	case !inTarget && hasRole:
		return []Change{{MemberID: memberID, Op: OpRemove, RoleID: roleID}}
	}
	return nil
}

// TopMemberIDs picks the ids of the `limit` members with the highest
// metric, skipping zeroes. Ties resolve by input order so repeated
// runs over the same data agree on the cutoff.
func TopMemberIDs[T any](items []T, id func(T) string, metric func(T) int, limit int) map[string]bool {
	indexes := make([]int, 0, len(items))
	for i, item := range items {
		if metric(item) > 0 {
			indexes = append(indexes, i)
		}
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		return metric(items[indexes[a]]) > metric(items[indexes[b]])
	})
	if len(indexes) > limit {
		indexes = indexes[:limit]
	}

	top := make(map[string]bool, len(indexes))
	for _, i := range indexes {
		top[id(items[i])] = true
	}
	return top
}

// MemberChanges is one member's share of a reconciliation plan.
type MemberChanges struct {
	MemberID string
	Add      []string
	Remove   []string
}

// GroupChanges folds a flat change list into per-member additions and
// removals, so applying needs one role update per member.
func GroupChanges(changes []Change) []MemberChanges {
	byMember := map[string]*MemberChanges{}
	var order []string
	for _, change := range changes {
		grouped, ok := byMember[change.MemberID]
		if !ok {
			grouped = &MemberChanges{MemberID: change.MemberID}
			byMember[change.MemberID] = grouped
			order = append(order, change.MemberID)
		}
		switch change.Op {
		case OpAdd:
			grouped.Add = append(grouped.Add, change.RoleID)
		case OpRemove:
			grouped.Remove = append(grouped.Remove, change.RoleID)
		}
	}

	result := make([]MemberChanges, len(order))
	for i, memberID := range order {
		result[i] = *byMember[memberID]
	}
	return result
}

// ApplyToRoles computes the member's final role list after the grouped
// changes. Unmanaged roles pass through untouched.
func ApplyToRoles(roles []string, changes MemberChanges) []string {
	result := make([]string, 0, len(roles)+len(changes.Add))
	for _, roleID := range roles {
		if !slices.Contains(changes.Remove, roleID) {
			result = append(result, roleID)
		}
	}
	for _, roleID := range changes.Add {
		if !slices.Contains(result, roleID) {
			result = append(result, roleID)
		}
	}
	return result
}
