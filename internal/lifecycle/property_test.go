package lifecycle

import (
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"project-workspace-api/internal/domain"
)

// Positions stay dense: after any sequence of moves and reorders every stage
// holds positions 0..n-1 and no task is lost or duplicated.
func TestProperty_PositionsStayDense(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	stages := []string{"todo", "doing", "done"}

	properties.Property("positions form 0..n-1 per stage", prop.ForAll(
		func(ops []int) bool {
			tasks := make([]uuid.UUID, 6)
			board := map[string][]uuid.UUID{}
			where := map[uuid.UUID]string{}
			for i := range tasks {
				tasks[i] = uuid.New()
				board["todo"] = append(board["todo"], tasks[i])
				where[tasks[i]] = "todo"
			}

			for _, op := range ops {
				task := tasks[op%len(tasks)]
				target := stages[(op/7)%len(stages)]
				pos := (op / 21) % 8

				if op%2 == 0 {
					from := where[task]
					board[from] = Without(board[from], task)
					board[target] = InsertAt(board[target], task, pos)
					where[task] = target
					continue
				}

				// reorder: rotate the target stage by pos
				cur := board[target]
				if len(cur) == 0 {
					continue
				}
				k := pos % len(cur)
				next := append(append([]uuid.UUID{}, cur[k:]...), cur[:k]...)
				if !IsPermutation(cur, next) {
					return false
				}
				board[target] = next
			}

			total := 0
			for _, st := range stages {
				positions := Positions(board[st])
				if len(positions) != len(board[st]) {
					return false
				}
				for id, p := range positions {
					if p < 0 || p >= len(board[st]) || where[id] != st {
						return false
					}
				}
				total += len(board[st])
			}
			return total == len(tasks)
		},
		gen.SliceOf(gen.IntRange(0, 10000)),
	))

	properties.TestingRun(t)
}

// Reorder is idempotent: applying the same permutation twice gives the same order.
func TestProperty_ReorderIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("reorder(S, p) twice equals once", prop.ForAll(
		func(n int, seed int) bool {
			cur := make([]uuid.UUID, n)
			for i := range cur {
				cur[i] = uuid.New()
			}
			requested := append([]uuid.UUID{}, cur...)
			for i := len(requested) - 1; i > 0; i-- {
				j := (seed + i*31) % (i + 1)
				requested[i], requested[j] = requested[j], requested[i]
			}
			once := Positions(requested)
			twice := Positions(requested)
			for id, p := range once {
				if twice[id] != p {
					return false
				}
			}
			return IsPermutation(cur, requested)
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

// The dependency graph stays acyclic when every insertion is guarded by CreatesCycle.
func TestProperty_DependencyGraphAcyclic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("guarded insertions never form a cycle", prop.ForAll(
		func(pairs []int) bool {
			nodes := make([]uuid.UUID, 7)
			for i := range nodes {
				nodes[i] = uuid.New()
			}
			var edges []Edge
			for _, p := range pairs {
				from := nodes[p%len(nodes)]
				to := nodes[(p/len(nodes))%len(nodes)]
				if CreatesCycle(edges, from, to) {
					continue
				}
				edges = append(edges, Edge{From: from, To: to})
			}
			return isAcyclic(nodes, edges)
		},
		gen.SliceOf(gen.IntRange(0, 48)),
	))

	properties.TestingRun(t)
}

// Lifecycle invariants hold after any sequence of transitions, whether or not
// individual transitions are rejected.
func TestProperty_LifecycleInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("task state invariants hold", prop.ForAll(
		func(ops []int, requireApproval bool) bool {
			p := testProject(requireApproval)
			stages := p.Stages()
			task := &domain.Task{BaseModel: domain.BaseModel{ID: uuid.New()}}
			if _, err := Place(task, p, "", member(), now); err != nil {
				return false
			}
			roles := []domain.Role{domain.RoleViewer, domain.RoleMember, domain.RoleAdmin, domain.RoleOwner}
			for _, op := range ops {
				actor := Actor{ID: uuid.New(), Role: roles[(op/4)%len(roles)]}
				stage := stages[(op/16)%len(stages)].ID
				switch op % 4 {
				case 0, 1:
					_, _ = Move(task, p, stage, actor, now)
				case 2:
					_, _ = Approve(task, p, actor, now)
				case 3:
					_, _ = Reject(task, p, "r", stage, actor, now)
				}
				if CheckInvariants(task, stages) != nil {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func isAcyclic(nodes []uuid.UUID, edges []Edge) bool {
	indeg := map[uuid.UUID]int{}
	next := map[uuid.UUID][]uuid.UUID{}
	for _, e := range edges {
		indeg[e.To]++
		next[e.From] = append(next[e.From], e.To)
	}
	var queue []uuid.UUID
	for _, n := range nodes {
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, m := range next[n] {
			indeg[m]--
			if indeg[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	return visited == len(nodes)
}
