package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageRegistry_Order(t *testing.T) {
	expected := []Stage{
		StagePending, StageGeneratingQueries, StageSearching, StageScreening,
		StageEnriching, StageStructuringAndIndexing, StageEvaluating,
		StageFinalizing, StageCompleted,
	}
	require.Len(t, StageRegistry, len(expected))
	for i, stage := range expected {
		assert.Equal(t, stage, StageRegistry[i].Stage)
		assert.NotEmpty(t, StageRegistry[i].Message)
		if i > 0 {
			assert.Greater(t, StageRegistry[i].Progress, StageRegistry[i-1].Progress)
		}
	}
	assert.Equal(t, 0, StageRegistry[0].Progress)
	assert.Equal(t, 100, StageRegistry[len(StageRegistry)-1].Progress)
}

func TestNext(t *testing.T) {
	next, ok := Next(StageScreening)
	require.True(t, ok)
	assert.Equal(t, StageEnriching, next)

	_, ok = Next(StageCompleted)
	assert.False(t, ok)

	_, ok = Next(StageFailed)
	assert.False(t, ok)
}

func TestDefinition_Unknown(t *testing.T) {
	_, err := Definition(StageFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}
