package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunTerminationReasonMapsToJobReason(t *testing.T) {
	cases := map[RunTerminationReason]JobTerminationReason{
		RunTerminationAllJobsDone:        JobTerminationDoneByRunner,
		RunTerminationJobFailed:          JobTerminationTerminatedByServer,
		RunTerminationRetryLimitExceeded: JobTerminationTerminatedByServer,
		RunTerminationStoppedByUser:      JobTerminationTerminatedByUser,
		RunTerminationAbortedByUser:      JobTerminationAbortedByUser,
	}
	for reason, want := range cases {
		got, ok := RunToJobTerminationReason[reason]
		assert.True(t, ok, "missing mapping for %s", reason)
		assert.Equal(t, want, got)
	}
}

func TestRunTerminationReasonMapsToFinalStatus(t *testing.T) {
	cases := map[RunTerminationReason]RunStatus{
		RunTerminationAllJobsDone:        RunStatusDone,
		RunTerminationJobFailed:          RunStatusFailed,
		RunTerminationRetryLimitExceeded: RunStatusFailed,
		RunTerminationStoppedByUser:      RunStatusTerminated,
		RunTerminationAbortedByUser:      RunStatusTerminated,
	}
	for reason, want := range cases {
		got, ok := RunTerminationToFinalStatus[reason]
		assert.True(t, ok, "missing mapping for %s", reason)
		assert.Equal(t, want, got)
	}
}

func TestRunStatusTerminal(t *testing.T) {
	assert.True(t, RunStatusDone.Terminal())
	assert.True(t, RunStatusFailed.Terminal())
	assert.True(t, RunStatusTerminated.Terminal())
	assert.False(t, RunStatusSubmitted.Terminal())
	assert.False(t, RunStatusRunning.Terminal())
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, JobStatusDone.Terminal())
	assert.True(t, JobStatusAborted.Terminal())
	assert.False(t, JobStatusProvisioning.Terminal())
}

func TestAvailabilityAvailable(t *testing.T) {
	assert.True(t, AvailabilityIdle.Available())
	assert.True(t, AvailabilityBusy.Available())
	assert.False(t, AvailabilityNoQuota.Available())
	assert.False(t, AvailabilityNoCapacity.Available())
}

func TestCreateCapableBackendsExcludesAggregator(t *testing.T) {
	assert.False(t, CreateCapableBackends[AggregatorBackendType])
	assert.True(t, CreateCapableBackends["aws"])
	assert.True(t, CreateCapableBackends["tensordock"])
}
