package domain

import (
	"time"
)

// Project is the tenancy boundary for pools, instances, and runs. Its
// SSH keypair is generated once at creation and never rotated by the
// core.
type Project struct {
	ID                string
	Name              string
	SSHPublicKey      string
	SSHPrivateKey     string
	ConfiguredBackends []string
	DefaultPoolID     string
	CreatedAt         time.Time
}

// HasBackends reports whether the project has at least one configured
// backend, required before any run can be submitted (spec §4.3 step 2).
func (p *Project) HasBackends() bool {
	return len(p.ConfiguredBackends) > 0
}

// Pool is a named, project-scoped collection of reusable instances.
// Exactly one pool per project may have Default set.
type Pool struct {
	ID        string
	ProjectID string
	Name      string
	Default   bool
	CreatedAt time.Time
}

// Instance is a provisioned (or provisioning) unit of compute owned by
// a Pool. Status transitions are monotonic toward TERMINATED/FAILED.
type Instance struct {
	ID                  string
	Name                string
	PoolID              string
	BackendType         string
	Region              string
	OfferSnapshot       Offer
	Hostname            string
	SSHPort             int
	Username            string
	Dockerized          bool
	BackendData         string
	Price               float64
	Status              InstanceStatus
	CreatedAt           time.Time
	StartedAt           *time.Time
	TerminatedAt        *time.Time
	TerminationPolicy   TerminationPolicy
	TerminationIdleTime int
	CurrentJobID        *string
}

// IsBusy reports whether the instance is bound to an unfinished job,
// the defining condition for InstanceStatusBusy (spec §3 invariant).
func (i *Instance) IsBusy() bool {
	return i.CurrentJobID != nil && i.Status == InstanceStatusBusy
}

// IsIdle reports whether the instance is healthy and unreferenced.
func (i *Instance) IsIdle() bool {
	return i.CurrentJobID == nil && i.Status == InstanceStatusIdle
}

// Requirements describes the resource shape and spot tolerance a job
// needs from an offer.
type Requirements struct {
	CPU        float64
	MemoryMiB  int
	GPU        *GPURequirement
	DiskMiB    int
	MaxPrice   *float64
	SpotPolicy SpotPolicy
}

// GPURequirement constrains GPU count and optionally vendor/name.
type GPURequirement struct {
	Count  int
	Name   string
	Vendor string
}

// Profile narrows a plan to specific backends/regions and sets the
// creation and termination policy for any instance it causes to be
// created.
type Profile struct {
	Backends            []string
	Regions             []string
	SpotPolicy          SpotPolicy
	CreationPolicy       CreationPolicy
	PoolName             string
	TerminationPolicy    TerminationPolicy
	TerminationIdleTime  int
}

// BackendAllowed reports whether backendType passes this profile's
// backend filter. An empty filter allows every backend; the aggregator
// meta-backend is always allowed regardless of the filter (spec §4.1
// step 2).
func (p *Profile) BackendAllowed(backendType string) bool {
	if len(p.Backends) == 0 {
		return true
	}
	if backendType == AggregatorBackendType {
		return true
	}
	for _, b := range p.Backends {
		if b == backendType {
			return true
		}
	}
	return false
}

// RegionAllowed reports whether region passes this profile's region
// filter. An empty filter allows every region.
func (p *Profile) RegionAllowed(region string) bool {
	if len(p.Regions) == 0 {
		return true
	}
	for _, r := range p.Regions {
		if r == region {
			return true
		}
	}
	return false
}

// Offer is a concrete, purchasable-or-reusable unit of capacity
// reported by a backend or derived from a pool instance.
type Offer struct {
	BackendType  string
	InstanceType string
	Region       string
	CPU          float64
	MemoryMiB    int
	GPUName      string
	GPUCount     int
	Price        float64
	Availability Availability
	Runtime      Runtime
	// PoolInstanceID is set when the offer was derived from an existing
	// pool instance rather than queried live from a backend.
	PoolInstanceID string
}

// FromPool reports whether the offer was derived from a pool instance
// rather than a live backend query.
func (o Offer) FromPool() bool { return o.PoolInstanceID != "" }

// Satisfies reports whether the offer meets the requirements' resource
// and price constraints.
func (o Offer) Satisfies(r Requirements) bool {
	if o.CPU < r.CPU {
		return false
	}
	if o.MemoryMiB < r.MemoryMiB {
		return false
	}
	if r.GPU != nil && o.GPUCount < r.GPU.Count {
		return false
	}
	if r.MaxPrice != nil && o.Price > *r.MaxPrice {
		return false
	}
	return true
}

// Run is a user-submitted unit of work containing one or more replicas
// of one or more jobs.
type Run struct {
	ID              string
	ProjectID       string
	RepoID          string
	UserID          string
	UserSSHKey      string
	RunName         string
	SubmittedAt     time.Time
	LastProcessedAt time.Time
	Status          RunStatus
	TerminationReason *RunTerminationReason
	Deleted         bool
	RunSpec         RunSpec
	GatewayID       *string
	ServiceSpec     *ServiceSpec
}

// RunSpec is the declarative configuration a user submits.
type RunSpec struct {
	Type         RunSpecType
	RepoID       string
	Configuration ConfigurationSpec
	Profile      Profile
	Requirements Requirements
}

// ConfigurationSpec describes the container(s) a job runs, plus replica
// fan-out for services.
type ConfigurationSpec struct {
	Image    string
	Commands []string
	Env      map[string]string
	Ports    []int
	Replicas ReplicasSpec
}

// ReplicasSpec bounds the number of replicas a service configuration
// fans out to. Auto-scaling is unsupported (spec §1 Non-goals): Min
// must equal Max.
type ReplicasSpec struct {
	Min int
	Max int
}

// Fixed reports whether the replica count is a fixed, non-autoscaling
// value, the only shape submit_run accepts for services.
func (r ReplicasSpec) Fixed() bool { return r.Min == r.Max && r.Min >= 1 }

// ServiceSpec carries service-specific metadata: the domain it is
// published under and whether it requires authentication.
type ServiceSpec struct {
	Domain string
	Auth   bool
}

// Job is a single container execution within a run, identified within
// the run by (ReplicaNum, JobNum); it may be retried as successive
// submissions distinguished by SubmissionNum.
type Job struct {
	ID              string
	RunID           string
	ProjectID       string
	ReplicaNum      int
	JobNum          int
	SubmissionNum   int
	JobName         string
	SubmittedAt     time.Time
	LastProcessedAt time.Time
	Status          JobStatus
	TerminationReason *JobTerminationReason
	JobSpec         JobSpec
	InstanceID      *string
	ProvisioningData *ProvisioningData
	// LastHeartbeatAt is the last time the reconciler confirmed this
	// job's runner agent is still alive, either by polling it directly
	// or by having just created its instance. A PROVISIONING or RUNNING
	// job whose heartbeat is older than ReconcilerConfig.JobHeartbeatTimeout
	// is eligible for re-polling or termination.
	LastHeartbeatAt *time.Time
}

// JobSpec is the declarative per-job configuration materialized from a
// RunSpec's ConfigurationSpec for one replica.
type JobSpec struct {
	Image        string
	Commands     []string
	Env          map[string]string
	Ports        []int
	Requirements Requirements
}

// ProvisioningData is the opaque, backend-reported connection info for
// a job's bound instance.
type ProvisioningData struct {
	Hostname    string
	SSHPort     int
	Username    string
	Dockerized  bool
	BackendData string
	Price       float64
	StartedAt   time.Time
}

// JobKey identifies a logical job within a run, independent of its
// submission attempts.
type JobKey struct {
	RunID      string
	ReplicaNum int
	JobNum     int
}

// Key returns the logical identity of j, ignoring SubmissionNum.
func (j *Job) Key() JobKey {
	return JobKey{RunID: j.RunID, ReplicaNum: j.ReplicaNum, JobNum: j.JobNum}
}

// JobSubmission is the derived, read-only view of the most recent job
// row for a (replica, job_num), together with its duration and cost.
type JobSubmission struct {
	Job             Job
	DurationHours   float64
	Cost            float64
}

// InstanceConfiguration is what create_instance hands to a backend: the
// SSH keys to install and the image to launch.
type InstanceConfiguration struct {
	InstanceName string
	UserSSHKey   string
	ProjectSSHKey string
	DockerImage  string
}

// LaunchedInstanceInfo is what a backend reports back on a successful
// create_instance call.
type LaunchedInstanceInfo struct {
	InstanceID  string
	IP          string
	Region      string
	Username    string
	SSHPort     int
	Dockerized  bool
	BackendData string
}

// RunPlan is the result of planning a run: a preview of candidate
// offers plus the full count and maximum price across all of them
// (spec §4.1 "Merge policy for a run plan").
type RunPlan struct {
	RunSpec     RunSpec
	OfferPreview []Offer
	TotalOfferCount int
	MaxPrice    *float64
}

// PreviewCap bounds how many offers a RunPlan carries in its preview
// list, independent of TotalOfferCount (spec §4.1).
const PreviewCap = 50
