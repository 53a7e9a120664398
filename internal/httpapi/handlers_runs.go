package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

type submitRunRequest struct {
	RepoID      string              `json:"repo_id"`
	UserID      string              `json:"user_id"`
	UserSSHKey  string              `json:"user_ssh_key"`
	RunName     *string             `json:"run_name,omitempty"`
	RunSpec     domain.RunSpec      `json:"run_spec"`
	ServiceSpec *domain.ServiceSpec `json:"service_spec,omitempty"`
}

func (s *Service) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req submitRunRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, apperrors.Clientf("decode request: %v", err))
		return
	}

	run, err := s.runsSvc.SubmitRun(ctx, project, req.RepoID, req.UserID, req.UserSSHKey, req.RunName, req.RunSpec, req.ServiceSpec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type getPlanRequest struct {
	RunSpec domain.RunSpec `json:"run_spec"`
}

func (s *Service) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req getPlanRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, apperrors.Clientf("decode request: %v", err))
		return
	}

	plan, err := s.runsSvc.GetRunPlan(ctx, project, req.RunSpec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type runNamesRequest struct {
	RunNames []string `json:"run_names"`
}

func (s *Service) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	names, err := s.store.ListActiveRunNames(ctx, project.ID)
	if err != nil {
		writeError(w, apperrors.Internal("list active run names", err))
		return
	}

	runs := make([]*domain.Run, 0, len(names))
	for name := range names {
		run, err := s.store.GetRunByName(ctx, project.ID, name)
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}
	writeJSON(w, http.StatusOK, runs)
}

type getRunRequest struct {
	RunName string `json:"run_name"`
}

func (s *Service) handleGetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req getRunRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, apperrors.Clientf("decode request: %v", err))
		return
	}

	run, err := s.store.GetRunByName(ctx, project.ID, req.RunName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type stopRunsRequest struct {
	RunNames []string `json:"run_names"`
	Abort    bool     `json:"abort"`
}

func (s *Service) handleStopRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req stopRunsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, apperrors.Clientf("decode request: %v", err))
		return
	}

	ids, err := s.resolveRunIDs(ctx, project.ID, req.RunNames)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.runsSvc.StopRuns(ctx, ids, req.Abort); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleDeleteRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.projectByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req runNamesRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, apperrors.Clientf("decode request: %v", err))
		return
	}

	ids, err := s.resolveRunIDs(ctx, project.ID, req.RunNames)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.runsSvc.DeleteRuns(ctx, ids); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) resolveRunIDs(ctx context.Context, projectID string, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		run, err := s.store.GetRunByName(ctx, projectID, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, run.ID)
	}
	return ids, nil
}
