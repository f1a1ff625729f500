package webhooks

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status Status
		want   Stage
	}{
		{StatusReceived, StageContinue},
		{StatusFailed, StageContinue},
		{StatusProcessing, StageDuplicate},
		{StatusCompleted, StageDuplicate},
		{StatusOperatorRequired, StageOperatorRequired},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status))
		})
	}
}

func TestNextOnSuccessAndFailure(t *testing.T) {
	for _, status := range Statuses {
		assert.Equal(t, StatusCompleted, NextOnSuccess(status))
		assert.Equal(t, StatusFailed, NextOnFailure(status))
	}
}

func TestProcessingFrom(t *testing.T) {
	from, increment, ok := ProcessingFrom(StatusReceived)
	require.True(t, ok)
	assert.Equal(t, StatusReceived, from)
	assert.False(t, increment, "first attempt is not a retry")

	from, increment, ok = ProcessingFrom(StatusFailed)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, from)
	assert.True(t, increment)

	for _, status := range []Status{StatusProcessing, StatusCompleted, StatusOperatorRequired} {
		_, _, ok := ProcessingFrom(status)
		assert.False(t, ok, "processing must not be claimed from %s", status)
	}
}

func TestCanTransition_Table(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusReceived, StatusProcessing}:         true,
		{StatusProcessing, StatusCompleted}:        true,
		{StatusProcessing, StatusFailed}:           true,
		{StatusFailed, StatusProcessing}:           true,
		{StatusOperatorRequired, StatusReceived}:   true,
		{StatusReceived, StatusOperatorRequired}:   true,
		{StatusProcessing, StatusOperatorRequired}: true,
		{StatusCompleted, StatusOperatorRequired}:  true,
		{StatusFailed, StatusOperatorRequired}:     true,

		{StatusOperatorRequired, StatusOperatorRequired}: true,
	}

	for _, from := range Statuses {
		for _, to := range Statuses {
			want := legal[[2]Status{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	assert.False(t, CanTransition(StatusFailed, StatusCompleted))
	assert.False(t, CanTransition("bogus", StatusProcessing))
}

func TestStatusMachine_RandomWalksStayLegal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for walk := 0; walk < 500; walk++ {
		current := StatusReceived
		for step := 0; step < 20; step++ {
			var next Status
			switch rng.Intn(4) {
			case 0:
				from, _, ok := ProcessingFrom(current)
				if !ok {
					continue
				}
				require.Equal(t, current, from)
				next = StatusProcessing
			case 1:
				if current != StatusProcessing {
					continue
				}
				next = NextOnSuccess(current)
			case 2:
				if current != StatusProcessing {
					continue
				}
				next = NextOnFailure(current)
			case 3:
				next = StatusOperatorRequired
			}

			require.True(t, CanTransition(current, next), "%s -> %s", current, next)
			require.True(t, next.Valid())
			require.False(t, current == StatusFailed && next == StatusCompleted)
			current = next
		}
	}
}

func TestShouldEscalate(t *testing.T) {
	assert.False(t, ShouldEscalate(0, 3))
	assert.False(t, ShouldEscalate(1, 3))
	assert.True(t, ShouldEscalate(2, 3))
	assert.True(t, ShouldEscalate(5, 3))
	assert.True(t, ShouldEscalate(0, 1))
}

func TestStageTerminal(t *testing.T) {
	assert.False(t, StageContinue.Terminal())
	for _, stage := range []Stage{StageDuplicate, StageOperatorRequired, StageFailed, StageCompleted} {
		assert.True(t, stage.Terminal(), string(stage))
	}
}
