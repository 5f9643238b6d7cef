package lifecycle

import (
	"github.com/google/uuid"
)

// Edge is a dependency: From blocks To.
type Edge struct {
	From uuid.UUID
	To   uuid.UUID
}

// CreatesCycle reports whether adding from->to to edges would close a cycle,
// i.e. to already reaches from (or they are the same task).
func CreatesCycle(edges []Edge, from, to uuid.UUID) bool {
	if from == to {
		return true
	}
	next := make(map[uuid.UUID][]uuid.UUID, len(edges))
	for _, e := range edges {
		next[e.From] = append(next[e.From], e.To)
	}
	seen := map[uuid.UUID]bool{to: true}
	queue := []uuid.UUID{to}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range next[cur] {
			if n == from {
				return true
			}
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return false
}

// ParentCreatesCycle reports whether making parent the parent of task would
// create a loop in the task tree described by parentOf.
func ParentCreatesCycle(parentOf map[uuid.UUID]uuid.UUID, task, parent uuid.UUID) bool {
	seen := make(map[uuid.UUID]bool)
	for cur := parent; ; {
		if cur == task {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		p, ok := parentOf[cur]
		if !ok {
			return false
		}
		cur = p
	}
}
