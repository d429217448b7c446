package build

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewState_AllPending verifies the freshly created record.
func TestNewState_AllPending(t *testing.T) {
	t.Parallel()

	s := NewState()
	require.Len(t, s.Stages, NumStages)
	require.False(t, s.Running)

	for _, stage := range s.Stages {
		require.Equal(t, StatusPending, stage.Status)
		require.NotEmpty(t, stage.Name)
		require.Empty(t, stage.Detail)
	}
}

// TestReset_ClearsStagesAndMessage ensures a run can reuse the record.
func TestReset_ClearsStagesAndMessage(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.SetStage(StageDownload, StatusFailed, "network down")
	s.StatusMessage = "build failed"

	s.Reset()

	require.Empty(t, s.StatusMessage)
	require.Equal(t, StatusPending, s.Stages[StageDownload].Status)
	require.Empty(t, s.Stages[StageDownload].Detail)
}

// TestInProgress_LinearScan finds the single running stage.
func TestInProgress_LinearScan(t *testing.T) {
	t.Parallel()

	s := NewState()
	require.Equal(t, -1, s.InProgress())

	s.SetStage(StageExtract, StatusInProgress, "")
	require.Equal(t, StageExtract, s.InProgress())
}

// TestClone_IsDeep ensures snapshots do not alias the original stages.
func TestClone_IsDeep(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.SetStage(StageVerify, StatusCompleted, "")

	snapshot := s.Clone()
	s.SetStage(StageVerify, StatusFailed, "boom")

	require.Equal(t, StatusCompleted, snapshot.Stages[StageVerify].Status)
	require.Empty(t, snapshot.Stages[StageVerify].Detail)
}
