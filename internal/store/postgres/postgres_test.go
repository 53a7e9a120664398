package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectBuilderBuildsParameterizedQuery(t *testing.T) {
	query, args := NewSelectBuilder("jobs").
		Columns("id", "status").
		WhereEq("run_id", "run-1").
		WhereIn("status", []any{"SUBMITTED", "RUNNING"}).
		OrderBy("last_processed_at", false).
		Limit(10).
		Build()

	assert.Equal(t, "SELECT id, status FROM jobs WHERE run_id = $1 AND status IN ($2, $3) ORDER BY last_processed_at ASC LIMIT 10", query)
	assert.Equal(t, []any{"run-1", "SUBMITTED", "RUNNING"}, args)
}

func TestSelectBuilderWhereInEmptyIsAlwaysFalse(t *testing.T) {
	query, args := NewSelectBuilder("jobs").WhereIn("status", nil).Build()
	assert.Contains(t, query, "1 = 0")
	assert.Empty(t, args)
}
