package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

// remoteBackendType identifies manually registered on-prem/remote
// instances added via add_remote, distinct from any cloud backend name
// in the registry.
const remoteBackendType = "remote"

func (s *Service) handlePoolList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	pools, err := s.store.ListPools(ctx, project.ID)
	if err != nil {
		writeError(w, apperrors.Internal("list pools", err))
		return
	}
	writeJSON(w, http.StatusOK, pools)
}

type poolNameRequest struct {
	Name string `json:"name"`
}

func (s *Service) handlePoolCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req poolNameRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, apperrors.Clientf("decode request: %v", err))
		return
	}

	p, err := s.pools.GetOrCreatePoolByName(ctx, project.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Service) handlePoolDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req poolNameRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, apperrors.Clientf("decode request: %v", err))
		return
	}

	p, err := s.store.GetPoolByName(ctx, project.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.DeletePool(ctx, p.ID); err != nil {
		writeError(w, apperrors.Internal("delete pool", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handlePoolShow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req poolNameRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, apperrors.Clientf("decode request: %v", err))
		return
	}

	p, err := s.store.GetPoolByName(ctx, project.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	instances, err := s.store.ListPoolInstances(ctx, p.ID)
	if err != nil {
		writeError(w, apperrors.Internal("list pool instances", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pool": p, "instances": instances})
}

type poolRemoveRequest struct {
	Name       string `json:"name"`
	InstanceID string `json:"instance_id"`
}

// handlePoolRemove evicts one instance from a pool — distinct from
// handlePoolDelete, which removes the pool itself. A client routing a
// pool-create request here by mistake is rejected as not-found rather
// than silently creating a pool.
func (s *Service) handlePoolRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req poolRemoveRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, apperrors.Clientf("decode request: %v", err))
		return
	}

	p, err := s.store.GetPoolByName(ctx, project.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	instance, err := s.store.GetInstance(ctx, req.InstanceID)
	if err != nil {
		writeError(w, err)
		return
	}
	if instance.PoolID != p.ID {
		writeError(w, apperrors.Clientf("instance %s is not in pool %s", req.InstanceID, req.Name))
		return
	}

	now := time.Now().UTC()
	instance.Status = domain.InstanceStatusTerminated
	instance.TerminatedAt = &now
	instance.CurrentJobID = nil
	if err := s.store.UpdateInstance(ctx, instance); err != nil {
		writeError(w, apperrors.Internal("remove pool instance", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handlePoolSetDefault(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req poolNameRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, apperrors.Clientf("decode request: %v", err))
		return
	}

	p, err := s.store.GetPoolByName(ctx, project.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.SetDefaultPool(ctx, project.ID, p.ID); err != nil {
		writeError(w, apperrors.Internal("set default pool", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type poolAddRemoteRequest struct {
	Name     string `json:"name"`
	Hostname string `json:"hostname"`
	SSHPort  int    `json:"ssh_port"`
	Username string `json:"username"`
}

// handlePoolAddRemote registers an externally-provisioned machine as an
// idle pool instance, the manual on-prem counterpart to create_instance.
func (s *Service) handlePoolAddRemote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req poolAddRemoteRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, apperrors.Clientf("decode request: %v", err))
		return
	}
	if req.Hostname == "" {
		writeError(w, apperrors.Client("hostname is required"))
		return
	}

	p, err := s.pools.GetOrCreatePoolByName(ctx, project.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	port := req.SSHPort
	if port == 0 {
		port = 22
	}

	instance := &domain.Instance{
		ID:          uuid.NewString(),
		Name:        fmt.Sprintf("remote-%s", uuid.NewString()),
		PoolID:      p.ID,
		BackendType: remoteBackendType,
		Hostname:    req.Hostname,
		SSHPort:     port,
		Username:    req.Username,
		Status:      domain.InstanceStatusIdle,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateInstance(ctx, instance); err != nil {
		writeError(w, apperrors.Internal("add remote instance", err))
		return
	}
	writeJSON(w, http.StatusOK, instance)
}
