package visit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusReception, StatusConsulting},
		{StatusConsulting, StatusTreatment},
		{StatusTreatment, StatusCompleted},
		{StatusCompleted, StatusPaid},
	}

	all := []Status{StatusReception, StatusConsulting, StatusTreatment, StatusCompleted, StatusPaid}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed {
				if a.from == from && a.to == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestNoBackwardOrSkipEdges(t *testing.T) {
	assert.False(t, CanTransition(StatusConsulting, StatusReception))
	assert.False(t, CanTransition(StatusReception, StatusTreatment))
	assert.False(t, CanTransition(StatusReception, StatusPaid))
	assert.False(t, CanTransition(StatusPaid, StatusCompleted))
}

func TestPaidIsTerminal(t *testing.T) {
	assert.True(t, Terminal(StatusPaid))
	assert.False(t, Terminal(StatusReception))
	assert.False(t, Terminal(StatusCompleted))
}

func TestHasTestOrder(t *testing.T) {
	v := &Visit{}
	assert.False(t, v.HasTestOrder())

	v.TestStatus = TestOrdered
	assert.True(t, v.HasTestOrder())

	v.TestStatus = TestCompleted
	assert.True(t, v.HasTestOrder())
}
