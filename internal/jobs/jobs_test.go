package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/orchestrator/internal/domain"
)

func TestFromRunSpecProducesOneJobPerReplica(t *testing.T) {
	spec := domain.RunSpec{
		Configuration: domain.ConfigurationSpec{
			Image:    "python:3.11",
			Commands: []string{"python", "train.py"},
			Ports:    []int{8000},
		},
	}
	created := FromRunSpec("run-1", "proj-1", spec, 2)
	require.Len(t, created, 1)
	job := created[0]
	assert.Equal(t, "run-1", job.RunID)
	assert.Equal(t, 2, job.ReplicaNum)
	assert.Equal(t, domain.JobStatusSubmitted, job.Status)
	assert.Equal(t, "python:3.11", job.JobSpec.Image)
	assert.Equal(t, []int{8000}, job.JobSpec.Ports)
}

func TestNextSubmissionIncrementsSubmissionNum(t *testing.T) {
	previous := &domain.Job{RunID: "run-1", ProjectID: "proj-1", ReplicaNum: 0, JobNum: 0, SubmissionNum: 0, JobName: "job-0"}
	next := NextSubmission(previous, domain.JobStatusSubmitted)
	assert.Equal(t, 1, next.SubmissionNum)
	assert.Equal(t, previous.JobNum, next.JobNum)
	assert.NotEqual(t, previous.ID, next.ID)
}

func TestTransitionToTerminatingSetsReason(t *testing.T) {
	job := &domain.Job{Status: domain.JobStatusRunning}
	TransitionToTerminating(job, domain.JobTerminationTerminatedByUser)
	assert.Equal(t, domain.JobStatusTerminating, job.Status)
	require.NotNil(t, job.TerminationReason)
	assert.Equal(t, domain.JobTerminationTerminatedByUser, *job.TerminationReason)
}

func TestFinalizeResolvesEachReason(t *testing.T) {
	cases := []struct {
		reason domain.JobTerminationReason
		want   domain.JobStatus
	}{
		{domain.JobTerminationDoneByRunner, domain.JobStatusDone},
		{domain.JobTerminationAbortedByUser, domain.JobStatusAborted},
		{domain.JobTerminationTerminatedByUser, domain.JobStatusTerminated},
		{domain.JobTerminationTerminatedByServer, domain.JobStatusFailed},
	}
	for _, tc := range cases {
		job := &domain.Job{Status: domain.JobStatusTerminating, TerminationReason: &tc.reason}
		Finalize(job)
		assert.Equal(t, tc.want, job.Status, "reason %s", tc.reason)
	}
}

func TestFinalizeNoOpWithoutReason(t *testing.T) {
	job := &domain.Job{Status: domain.JobStatusTerminating}
	Finalize(job)
	assert.Equal(t, domain.JobStatusTerminating, job.Status)
}

func TestReleaseInstanceFailsOnServerTermination(t *testing.T) {
	reason := domain.JobTerminationTerminatedByServer
	job := &domain.Job{TerminationReason: &reason}
	assert.Equal(t, domain.InstanceStatusFailed, ReleaseInstance(job))
}

func TestReleaseInstanceIdleOtherwise(t *testing.T) {
	reason := domain.JobTerminationDoneByRunner
	job := &domain.Job{TerminationReason: &reason}
	assert.Equal(t, domain.InstanceStatusIdle, ReleaseInstance(job))
}
