package lifecycle

import (
	"github.com/google/uuid"
)

// InsertAt returns order with id inserted at pos. pos is clamped to [0, len(order)];
// id is removed first if already present.
func InsertAt(order []uuid.UUID, id uuid.UUID, pos int) []uuid.UUID {
	base := Without(order, id)
	if pos < 0 {
		pos = 0
	}
	if pos > len(base) {
		pos = len(base)
	}
	out := make([]uuid.UUID, 0, len(base)+1)
	out = append(out, base[:pos]...)
	out = append(out, id)
	out = append(out, base[pos:]...)
	return out
}

// Without returns order minus id, preserving relative order.
func Without(order []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(order))
	for _, v := range order {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// IsPermutation reports whether requested contains exactly the ids of current, each once.
func IsPermutation(current, requested []uuid.UUID) bool {
	if len(current) != len(requested) {
		return false
	}
	want := make(map[uuid.UUID]int, len(current))
	for _, id := range current {
		want[id]++
	}
	for _, id := range requested {
		if want[id] == 0 {
			return false
		}
		want[id]--
	}
	return true
}

// Positions maps each id to its index in order.
func Positions(order []uuid.UUID) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		out[id] = i
	}
	return out
}
