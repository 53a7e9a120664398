package domain

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/ssh"
)

// runNameRegexp is the run_name format mandated by spec §3/§6:
// lowercase alphanumeric-with-hyphens, 2-41 characters, starting with
// a letter.
var runNameRegexp = regexp.MustCompile(`^[a-z][a-z0-9-]{1,40}$`)

// ValidateRunName reports whether name satisfies the run_name format.
func ValidateRunName(name string) error {
	if !runNameRegexp.MatchString(name) {
		return fmt.Errorf("run_name %q does not match ^[a-z][a-z0-9-]{1,40}$", name)
	}
	return nil
}

// validate is the shared validator instance behind the Validate methods
// of the struct-tagged request types (RunSubmitRequest,
// PoolCreateRequest); the HTTP handlers do not call those methods.
var validate = validator.New()

func init() {
	_ = validate.RegisterValidation("run_name", func(fl validator.FieldLevel) bool {
		return runNameRegexp.MatchString(fl.Field().String())
	})
}

// RunSubmitRequest is the validated shape of a submit_run HTTP payload.
type RunSubmitRequest struct {
	RepoID  string  `validate:"required"`
	RunName *string `validate:"omitempty,run_name"`
	RunSpec RunSpec `validate:"-"`
}

// PoolCreateRequest is the validated shape of a pool/create HTTP
// payload.
type PoolCreateRequest struct {
	Name string `validate:"required,max=50"`
}

// Validate runs struct-tag validation over req.
func (r RunSubmitRequest) Validate() error {
	return validate.Struct(r)
}

// Validate runs struct-tag validation over req.
func (r PoolCreateRequest) Validate() error {
	return validate.Struct(r)
}

// ValidateReplicas enforces the fixed-replica-count Non-goal (spec §1,
// §4.3 step 4): auto-scaling configurations are rejected outright.
func ValidateReplicas(spec ReplicasSpec) error {
	if spec.Min != spec.Max || spec.Min < 1 {
		return fmt.Errorf("auto-scaling is not supported yet")
	}
	return nil
}

// ValidateSSHPublicKey parses an authorized_keys-format public key,
// rejecting malformed project or user keys before they ever reach a
// backend's create_instance call.
func ValidateSSHPublicKey(key string) error {
	if key == "" {
		return fmt.Errorf("ssh public key is empty")
	}
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
		return fmt.Errorf("invalid ssh public key: %w", err)
	}
	return nil
}

// ValidateSSHPrivateKey parses a PEM-encoded private key, used to
// validate a Project's generated keypair before it is persisted.
func ValidateSSHPrivateKey(key string) error {
	if key == "" {
		return fmt.Errorf("ssh private key is empty")
	}
	if _, err := ssh.ParsePrivateKey([]byte(key)); err != nil {
		return fmt.Errorf("invalid ssh private key: %w", err)
	}
	return nil
}

// ValidateProjectSSHKeypair validates both halves of a Project's SSH
// keypair together, the shape create_instance and project provisioning
// both depend on.
func ValidateProjectSSHKeypair(project *Project) error {
	if err := ValidateSSHPublicKey(project.SSHPublicKey); err != nil {
		return fmt.Errorf("project %s: %w", project.ID, err)
	}
	if err := ValidateSSHPrivateKey(project.SSHPrivateKey); err != nil {
		return fmt.Errorf("project %s: %w", project.ID, err)
	}
	return nil
}
