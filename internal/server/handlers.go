package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/josephgoksu/taskmail/internal/auth"
	"github.com/josephgoksu/taskmail/internal/memory"
	"github.com/josephgoksu/taskmail/internal/pipeline"
	"github.com/josephgoksu/taskmail/internal/task"
)

// handleHealth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable", "")
		return
	}
	writeAPIJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngestEmail accepts a raw RFC 5322 body or a multipart "file" field.
func (s *Server) handleIngestEmail(w http.ResponseWriter, r *http.Request) {
	raw, err := readEmail(r)
	if tooLarge(err) {
		s.writeTooLarge(w)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), string(pipeline.ReasonInvalidEmail))
		return
	}

	res, err := s.pipeline.Ingest(r.Context(), ownerFrom(r.Context()), raw)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, IngestResponse{
		TaskCount: res.TaskCount,
		EmailID:   res.EmailID,
		State:     string(res.State),
	})
}

func readEmail(r *http.Request) ([]byte, error) {
	if r.MultipartForm != nil {
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("multipart field \"file\" is required")
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return raw, nil
}

// handleListTasks applies query parameters over the owner's preferences.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	q, err := parseListQuery(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	prefs, err := s.store.GetPreferences(r.Context(), owner)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	tasks, err := s.store.ListTasks(r.Context(), owner)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	opts := q.Resolve(prefs.FilterOptions(task.DateOf(s.now())))
	filtered, err := task.Filter(tasks, opts)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, TaskListResponse{Tasks: filtered, Count: len(filtered)})
}

func parseListQuery(r *http.Request) (task.ListQuery, error) {
	values := r.URL.Query()
	var q task.ListQuery

	if v := values.Get("due_from"); v != "" {
		d, err := task.ParseDate(v)
		if err != nil {
			return q, err
		}
		q.DueFrom = &d
	}
	if v := values.Get("due_to"); v != "" {
		d, err := task.ParseDate(v)
		if err != nil {
			return q, err
		}
		q.DueTo = &d
	}
	if v := values.Get("include_no_due_date"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("%w: include_no_due_date must be true or false", task.ErrValidation)
		}
		q.IncludeNoDueDate = &b
	}
	for _, v := range values["parent_requirement_levels"] {
		levels, err := task.ParseRequirementLevels(v)
		if err != nil {
			return q, err
		}
		q.ParentRequirementLevels = append(q.ParentRequirementLevels, levels...)
	}
	for _, v := range values["status"] {
		st, err := task.ParseStatus(v)
		if err != nil {
			return q, err
		}
		q.Statuses = append(q.Statuses, st)
	}
	return q, nil
}

// handleUpdateTask
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid task id", "")
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	changes, err := req.changes()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if changes.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update", "")
		return
	}

	updated, err := s.store.UpdateTask(r.Context(), id, ownerFrom(r.Context()), changes)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, updated)
}

func (req UpdateTaskRequest) changes() (task.Changes, error) {
	c := task.Changes{
		Title:               req.Title,
		Description:         req.Description,
		ConsequenceIfIgnore: req.ConsequenceIfIgnore,
	}
	if req.DueDate != nil {
		if strings.TrimSpace(*req.DueDate) == "" {
			c.ClearDueDate = true
		} else {
			d, err := task.ParseDate(*req.DueDate)
			if err != nil {
				return c, err
			}
			c.DueDate = &d
		}
	}
	if req.Status != nil {
		st, err := task.ParseStatus(*req.Status)
		if err != nil {
			return c, err
		}
		c.Status = &st
	}
	if req.ParentAction != nil {
		a := task.ParentAction(strings.ToUpper(*req.ParentAction))
		c.ParentAction = &a
	}
	if req.StudentAction != nil {
		a := task.StudentAction(strings.ToUpper(*req.StudentAction))
		c.StudentAction = &a
	}
	if req.ParentRequirementLevel != nil {
		l := task.RequirementLevel(strings.ToUpper(*req.ParentRequirementLevel))
		c.ParentRequirementLevel = &l
	}
	if req.StudentRequirementLevel != nil {
		l := task.RequirementLevel(strings.ToUpper(*req.StudentRequirementLevel))
		c.StudentRequirementLevel = &l
	}
	return c, nil
}

// handleConsolidate merges the caller's tasks now instead of waiting for the sweep.
func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.Consolidate(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, ConsolidateResponse{TaskCount: res.TaskCount, Tasks: res.Tasks})
}

// writeErr maps package sentinels onto HTTP statuses.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var failure *pipeline.Failure
	switch {
	case errors.Is(err, auth.ErrUnsupported):
		writeError(w, http.StatusNotImplemented, err.Error(), "")
	case errors.Is(err, auth.ErrCredential):
		writeError(w, http.StatusUnauthorized, "invalid credentials", "")
	case errors.As(err, &failure):
		status := statusForReason(failure.Reason)
		msg := failure.Error()
		if status == http.StatusInternalServerError {
			s.logger.Error("request failed", "path", r.URL.Path, "error", err)
			msg = "internal error"
		}
		writeError(w, status, msg, string(failure.Reason))
	case errors.Is(err, memory.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found", "")
	case errors.Is(err, task.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func statusForReason(reason pipeline.Reason) int {
	switch reason {
	case pipeline.ReasonInvalidEmail, pipeline.ReasonNoContent, pipeline.ReasonExtractionFailed:
		return http.StatusBadRequest
	case pipeline.ReasonBudgetExhausted:
		return http.StatusPaymentRequired
	case pipeline.ReasonPolicyDenied:
		return http.StatusForbidden
	case pipeline.ReasonDuplicateEmail:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg, reason string) {
	writeAPIJSON(w, status, ErrorResponse{Error: msg, Reason: reason})
}

func writeAPIJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
