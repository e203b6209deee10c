package eddy

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// UserList is an algebraic, possibly unbounded set of user identities.
// It is either inclusive ("exactly these users") or exclusive ("everyone
// except these users"). All operations stay in this representation: the
// exclusive side is never enumerated.
type UserList struct {
	inclusive bool
	ids       []uuid.UUID
}

// ClosedUserList returns the finite set of the given users.
func ClosedUserList(ids ...uuid.UUID) UserList {
	return UserList{inclusive: true, ids: normalizeIDs(ids)}
}

// OpenUserList returns "everyone except the given users".
func OpenUserList(exclude ...uuid.UUID) UserList {
	return UserList{inclusive: false, ids: normalizeIDs(exclude)}
}

func Everyone() UserList {
	return OpenUserList()
}

func Nobody() UserList {
	return ClosedUserList()
}

func (l UserList) Inclusive() bool {
	return l.inclusive
}

// IDs returns the finite side of the list: members if inclusive,
// exclusions otherwise.
func (l UserList) IDs() []uuid.UUID {
	return slices.Clone(l.ids)
}

func (l UserList) Includes(id uuid.UUID) bool {
	_, found := slices.BinarySearchFunc(l.ids, id, compareIDs)
	return found == l.inclusive
}

func (l UserList) IsEmpty() bool {
	return l.inclusive && len(l.ids) == 0
}

func (l UserList) IsEveryone() bool {
	return !l.inclusive && len(l.ids) == 0
}

func (l UserList) String() string {
	if l.inclusive {
		return fmt.Sprintf("UserList(%d users)", len(l.ids))
	}
	return fmt.Sprintf("UserList(all except %d users)", len(l.ids))
}

// Complement flips the list without touching the finite side.
func (l UserList) Complement() UserList {
	return UserList{inclusive: !l.inclusive, ids: l.ids}
}

// IntersectUserLists computes a ∩ b by the four-case table; the result is
// open only when both arguments are open.
func IntersectUserLists(a, b UserList) UserList {
	switch {
	case a.inclusive && b.inclusive:
		return UserList{inclusive: true, ids: intersectIDs(a.ids, b.ids)}
	case a.inclusive && !b.inclusive:
		return UserList{inclusive: true, ids: subtractIDs(a.ids, b.ids)}
	case !a.inclusive && b.inclusive:
		return UserList{inclusive: true, ids: subtractIDs(b.ids, a.ids)}
	default:
		return UserList{inclusive: false, ids: unionIDs(a.ids, b.ids)}
	}
}

// UnionUserLists computes a ∪ b; the result is closed only when both
// arguments are closed.
func UnionUserLists(a, b UserList) UserList {
	switch {
	case a.inclusive && b.inclusive:
		return UserList{inclusive: true, ids: unionIDs(a.ids, b.ids)}
	case a.inclusive && !b.inclusive:
		return UserList{inclusive: false, ids: subtractIDs(b.ids, a.ids)}
	case !a.inclusive && b.inclusive:
		return UserList{inclusive: false, ids: subtractIDs(a.ids, b.ids)}
	default:
		return UserList{inclusive: false, ids: intersectIDs(a.ids, b.ids)}
	}
}

// SubtractUserLists computes a − b.
func SubtractUserLists(a, b UserList) UserList {
	return IntersectUserLists(a, b.Complement())
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// normalizeIDs sorts and dedupes, so the set operations can merge linearly.
func normalizeIDs(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, compareIDs)
	return slices.Compact(out)
}

func intersectIDs(a, b []uuid.UUID) []uuid.UUID {
	out := []uuid.UUID{}
	for _, id := range a {
		if _, found := slices.BinarySearchFunc(b, id, compareIDs); found {
			out = append(out, id)
		}
	}
	return out
}

func unionIDs(a, b []uuid.UUID) []uuid.UUID {
	return normalizeIDs(slices.Concat(a, b))
}

func subtractIDs(a, b []uuid.UUID) []uuid.UUID {
	out := []uuid.UUID{}
	for _, id := range a {
		if _, found := slices.BinarySearchFunc(b, id, compareIDs); !found {
			out = append(out, id)
		}
	}
	return out
}
