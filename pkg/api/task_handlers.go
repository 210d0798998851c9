package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/httputil"
	"github.com/meridiancrm/meridian/pkg/notifications"
)

func (s *Server) taskRoutes(router *mux.Router) {
	router.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	router.HandleFunc("/tasks", s.handleCreateTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{id:[0-9]+}", s.handleGetTask).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{id:[0-9]+}", s.handleUpdateTask).Methods(http.MethodPut)
	router.HandleFunc("/tasks/{id:[0-9]+}", s.handleDeleteTask).Methods(http.MethodDelete)
}

func taskEntity(t *crm.Task) notifications.Entity {
	return notifications.Entity{Kind: "task", ID: t.ID, Label: t.Title}
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	search, limit, offset, err := listParams(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	requested, err := queryAssignee(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	filter := crm.TaskFilter{
		Search:     search,
		Limit:      limit,
		Offset:     offset,
		AssignedTo: crm.ScopeAssignee(s.cfg.Policy, act, requested),
	}
	if raw := httputil.ParseQueryString(r, "status", ""); raw != "" {
		status, err := crm.ParseTaskStatus(raw)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.Status = &status
	}
	if raw := httputil.ParseQueryString(r, "priority", ""); raw != "" {
		priority := crm.TaskPriority(raw)
		filter.Priority = &priority
	}

	tasks, err := s.cfg.Tasks.List(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteList(w, map[string]interface{}{"tasks": tasks}, len(tasks))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	task, err := s.cfg.Tasks.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, task.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"task": task})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var task crm.Task
	if err := httputil.ParseJSON(r, &task); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := httputil.RequireNonEmpty(task.Title, "title"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if task.Status != "" {
		if _, err := crm.ParseTaskStatus(string(task.Status)); err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
	}

	explicitAssignee := task.AssignedTo
	task.AssignedTo = crm.DefaultAssignee(act, task.AssignedTo)

	created, err := s.cfg.Tasks.Create(r.Context(), &task)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.cfg.Fanout.Created(r.Context(), act, taskEntity(created), explicitAssignee)
	s.record(r, act, audit.ActionCreate, audit.EntityTask, created.ID,
		audit.NewCreateDetails(map[string]interface{}{
			"title":    created.Title,
			"type":     created.Type,
			"priority": created.Priority,
		}))

	httputil.WriteMessage(w, http.StatusCreated, "Task created successfully",
		map[string]interface{}{"task": created})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	existing, err := s.cfg.Tasks.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, existing.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var update crm.TaskUpdate
	if err := httputil.ParseJSON(r, &update); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if update.Status != nil {
		if _, err := crm.ParseTaskStatus(string(*update.Status)); err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
	}

	updated, err := s.cfg.Tasks.Update(r.Context(), id, update)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if update.AssignedTo != nil {
		s.cfg.Fanout.Reassigned(r.Context(), act, taskEntity(updated), existing.AssignedTo, update.AssignedTo)
	}
	if update.Status != nil {
		s.cfg.Fanout.StatusChanged(r.Context(), act, taskEntity(updated), updated.AssignedTo,
			string(existing.Status), string(updated.Status))
	}
	s.record(r, act, audit.ActionUpdate, audit.EntityTask, id, audit.NewUpdateDetails(update))

	httputil.WriteMessage(w, http.StatusOK, "Task updated successfully",
		map[string]interface{}{"task": updated})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	existing, err := s.cfg.Tasks.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, existing.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if err := s.cfg.Tasks.Delete(r.Context(), id); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionDelete, audit.EntityTask, id,
		audit.NewDeleteDetails(existing.Title))

	httputil.WriteMessage(w, http.StatusOK, "Task deleted successfully", nil)
}
