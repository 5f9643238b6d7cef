package lifecycle

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCreatesCycle(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	edges := []Edge{{From: a, To: b}, {From: b, To: c}}

	assert.True(t, CreatesCycle(edges, c, a), "C blocks A closes A->B->C")
	assert.True(t, CreatesCycle(edges, b, a))
	assert.True(t, CreatesCycle(edges, a, a))
	assert.False(t, CreatesCycle(edges, a, c))
	assert.False(t, CreatesCycle(nil, a, b))
}

func TestParentCreatesCycle(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	parentOf := map[uuid.UUID]uuid.UUID{b: a, c: b}

	assert.True(t, ParentCreatesCycle(parentOf, a, c))
	assert.True(t, ParentCreatesCycle(parentOf, a, a))
	assert.False(t, ParentCreatesCycle(parentOf, d, c))
	assert.False(t, ParentCreatesCycle(parentOf, c, a))
}

func TestInsertAtClamps(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	assert.Equal(t, []uuid.UUID{c, a, b}, InsertAt([]uuid.UUID{a, b}, c, -3))
	assert.Equal(t, []uuid.UUID{a, b, c}, InsertAt([]uuid.UUID{a, b}, c, 99))
	assert.Equal(t, []uuid.UUID{b, a}, InsertAt([]uuid.UUID{a, b}, a, 1))
}

func TestIsPermutation(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	assert.True(t, IsPermutation([]uuid.UUID{a, b, c}, []uuid.UUID{c, a, b}))
	assert.False(t, IsPermutation([]uuid.UUID{a, b, c}, []uuid.UUID{c, a}))
	assert.False(t, IsPermutation([]uuid.UUID{a, b}, []uuid.UUID{a, a}))
}
