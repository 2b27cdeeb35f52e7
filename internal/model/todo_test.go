package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTodoItemIsCompleted(t *testing.T) {
	t.Parallel()

	assert.True(t, TodoItem{Status: TodoStatusCompleted}.IsCompleted())
	assert.False(t, TodoItem{Status: TodoStatusNeedsAction}.IsCompleted())
	assert.False(t, TodoItem{Status: TodoStatusDeleted}.IsCompleted())
}

func TestTodoItemIsOverdue(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)

	assert.True(t, TodoItem{Status: TodoStatusNeedsAction, Due: &past}.IsOverdue())
	assert.False(t, TodoItem{Status: TodoStatusNeedsAction, Due: &future}.IsOverdue())
	assert.False(t, TodoItem{Status: TodoStatusNeedsAction}.IsOverdue())

	// Completed items are never overdue, regardless of due date.
	assert.False(t, TodoItem{Status: TodoStatusCompleted, Due: &past}.IsOverdue())
}
