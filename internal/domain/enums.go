// Package domain holds the core entities of the run orchestration core:
// projects, pools, instances, runs, jobs, offers, requirements, and
// profiles, plus their status enums and validation rules.
package domain

// InstanceStatus is the lifecycle status of a provisioned instance.
// Transitions are monotonic toward TERMINATED.
type InstanceStatus string

const (
	InstanceStatusPending      InstanceStatus = "PENDING"
	InstanceStatusProvisioning InstanceStatus = "PROVISIONING"
	InstanceStatusIdle         InstanceStatus = "IDLE"
	InstanceStatusBusy         InstanceStatus = "BUSY"
	InstanceStatusTerminating  InstanceStatus = "TERMINATING"
	InstanceStatusTerminated   InstanceStatus = "TERMINATED"
	InstanceStatusFailed       InstanceStatus = "FAILED"
)

// Terminal reports whether status admits no further transitions.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceStatusTerminated || s == InstanceStatusFailed
}

// TerminationPolicy controls what happens to an IDLE instance.
type TerminationPolicy string

const (
	TerminationPolicyDestroyAfterIdle TerminationPolicy = "DESTROY_AFTER_IDLE"
	TerminationPolicyDontDestroy      TerminationPolicy = "DONT_DESTROY"
)

// RunStatus is the lifecycle status of a run.
type RunStatus string

const (
	RunStatusSubmitted   RunStatus = "SUBMITTED"
	RunStatusProvisioning RunStatus = "PROVISIONING"
	RunStatusRunning     RunStatus = "RUNNING"
	RunStatusTerminating RunStatus = "TERMINATING"
	RunStatusDone        RunStatus = "DONE"
	RunStatusFailed      RunStatus = "FAILED"
	RunStatusTerminated  RunStatus = "TERMINATED"
)

// Terminal reports whether status is one of the run's terminal states.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusDone, RunStatusFailed, RunStatusTerminated:
		return true
	default:
		return false
	}
}

// RunTerminationReason explains why a run entered TERMINATING.
type RunTerminationReason string

const (
	RunTerminationAllJobsDone        RunTerminationReason = "ALL_JOBS_DONE"
	RunTerminationJobFailed          RunTerminationReason = "JOB_FAILED"
	RunTerminationRetryLimitExceeded RunTerminationReason = "RETRY_LIMIT_EXCEEDED"
	RunTerminationStoppedByUser      RunTerminationReason = "STOPPED_BY_USER"
	RunTerminationAbortedByUser      RunTerminationReason = "ABORTED_BY_USER"
)

// JobStatus is the lifecycle status of a single job submission attempt.
type JobStatus string

const (
	JobStatusSubmitted   JobStatus = "SUBMITTED"
	JobStatusProvisioning JobStatus = "PROVISIONING"
	JobStatusRunning     JobStatus = "RUNNING"
	JobStatusTerminating JobStatus = "TERMINATING"
	JobStatusDone        JobStatus = "DONE"
	JobStatusFailed      JobStatus = "FAILED"
	JobStatusTerminated  JobStatus = "TERMINATED"
	JobStatusAborted     JobStatus = "ABORTED"
)

// Terminal reports whether status is one of the job's terminal states.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusDone, JobStatusFailed, JobStatusTerminated, JobStatusAborted:
		return true
	default:
		return false
	}
}

// JobTerminationReason explains why a job entered TERMINATING and, by
// extension, which terminal status it will resolve to.
type JobTerminationReason string

const (
	JobTerminationDoneByRunner     JobTerminationReason = "DONE_BY_RUNNER"
	JobTerminationTerminatedByServer JobTerminationReason = "TERMINATED_BY_SERVER"
	JobTerminationTerminatedByUser JobTerminationReason = "TERMINATED_BY_USER"
	JobTerminationAbortedByUser    JobTerminationReason = "ABORTED_BY_USER"
)

// RunToJobTerminationReason maps a run's termination reason to the
// reason propagated to its still-unfinished jobs (spec §4.4 step 1).
var RunToJobTerminationReason = map[RunTerminationReason]JobTerminationReason{
	RunTerminationAllJobsDone:        JobTerminationDoneByRunner,
	RunTerminationJobFailed:          JobTerminationTerminatedByServer,
	RunTerminationRetryLimitExceeded: JobTerminationTerminatedByServer,
	RunTerminationStoppedByUser:      JobTerminationTerminatedByUser,
	RunTerminationAbortedByUser:      JobTerminationAbortedByUser,
}

// RunTerminationToFinalStatus maps a run's termination reason to the
// RunStatus it resolves to once every job has finished (spec §4.4 step 5).
var RunTerminationToFinalStatus = map[RunTerminationReason]RunStatus{
	RunTerminationAllJobsDone:        RunStatusDone,
	RunTerminationJobFailed:          RunStatusFailed,
	RunTerminationRetryLimitExceeded: RunStatusFailed,
	RunTerminationStoppedByUser:      RunStatusTerminated,
	RunTerminationAbortedByUser:      RunStatusTerminated,
}

// Availability describes whether an offer can currently be acted on.
type Availability string

const (
	AvailabilityIdle      Availability = "IDLE"
	AvailabilityBusy      Availability = "BUSY"
	AvailabilityAvailable Availability = "AVAILABLE"
	AvailabilityNoQuota   Availability = "NO_QUOTA"
	AvailabilityNoCapacity Availability = "NO_CAPACITY"
)

// Available reports whether a is a usable availability value, i.e. not
// a capacity/quota exhaustion signal.
func (a Availability) Available() bool {
	switch a {
	case AvailabilityIdle, AvailabilityBusy, AvailabilityAvailable:
		return true
	default:
		return false
	}
}

// Runtime describes what an offer can host. RUNNER offers cannot host
// an arbitrary VM and are excluded from create-instance paths.
type Runtime string

const (
	RuntimeShim   Runtime = "SHIM"
	RuntimeRunner Runtime = "RUNNER"
)

// SpotPolicy constrains whether a requirement accepts spot/preemptible
// capacity.
type SpotPolicy string

const (
	SpotPolicySpot     SpotPolicy = "SPOT"
	SpotPolicyOnDemand SpotPolicy = "ON_DEMAND"
	SpotPolicyAuto     SpotPolicy = "AUTO"
)

// CreationPolicy controls whether a profile may create new capacity or
// must reuse pool instances.
type CreationPolicy string

const (
	CreationPolicyReuse         CreationPolicy = "REUSE"
	CreationPolicyReuseOrCreate CreationPolicy = "REUSE_OR_CREATE"
)

// RunSpecType discriminates a task from a long-lived service.
type RunSpecType string

const (
	RunSpecTypeTask    RunSpecType = "task"
	RunSpecTypeService RunSpecType = "service"
)

// CreateCapableBackends lists the backend types that support explicit
// instance creation (spec §4.6 step 2). The aggregator meta-backend is
// deliberately absent: it fans out to these, it never creates directly.
var CreateCapableBackends = map[string]bool{
	"aws":        true,
	"azure":      true,
	"cudo":       true,
	"datacrunch": true,
	"gcp":        true,
	"lambda":     true,
	"tensordock": true,
}

// AggregatorBackendType is the meta-backend identifier that is always
// retained when a profile narrows to an explicit backend list (spec
// §4.1 step 2), since it may fan out to other backends.
const AggregatorBackendType = "aggregator"
