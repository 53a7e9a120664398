// Package instancecfg assembles the InstanceConfiguration a backend's
// create_instance call receives: the docker image to launch plus the
// two SSH keys that must both end up in the instance's authorized_keys
// (the submitting user's key and the project's own key), mirroring the
// original's `ssh_keys=[user_ssh_key, project_ssh_key]` assembly
// (runs.py:522-531).
package instancecfg

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/skyfleet/orchestrator/internal/domain"
)

// defaultDockerImage is the image create_instance installs when a job
// spec names none, mirroring the runner's bundled base image.
const defaultDockerImage = "dstackai/base:py3.12-0.6"

// Build assembles the InstanceConfiguration for a new instance,
// validating both SSH keys so a malformed key is rejected before any
// backend ever sees it rather than surfacing as an opaque create
// failure.
func Build(userSSHKey, projectSSHKey string) (domain.InstanceConfiguration, error) {
	if err := domain.ValidateSSHPublicKey(userSSHKey); err != nil {
		return domain.InstanceConfiguration{}, fmt.Errorf("user ssh key: %w", err)
	}
	if err := domain.ValidateSSHPublicKey(projectSSHKey); err != nil {
		return domain.InstanceConfiguration{}, fmt.Errorf("project ssh key: %w", err)
	}
	return domain.InstanceConfiguration{
		InstanceName:  fmt.Sprintf("instance-%s", uuid.NewString()),
		UserSSHKey:    userSSHKey,
		ProjectSSHKey: projectSSHKey,
		DockerImage:   defaultDockerImage,
	}, nil
}
