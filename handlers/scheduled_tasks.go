package handlers

import (
	"errors"
	"net/http"

	"flikz/services/scheduler"

	"github.com/gorilla/mux"
)

type taskScheduler interface {
	Status() []scheduler.TaskStatus
	RunTaskNow(taskID string) error
}

var _ taskScheduler = (*scheduler.Service)(nil)

// ScheduledTasksHandler exposes the maintenance tasks
type ScheduledTasksHandler struct {
	Scheduler taskScheduler
}

func NewScheduledTasksHandler(s taskScheduler) *ScheduledTasksHandler {
	return &ScheduledTasksHandler{Scheduler: s}
}

// ListTasks returns all scheduled tasks with current status
// GET /api/tasks
func (h *ScheduledTasksHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": h.Scheduler.Status(),
	})
}

// RunTask triggers immediate execution of a task
// POST /api/tasks/{taskID}/run
func (h *ScheduledTasksHandler) RunTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskID"]
	switch err := h.Scheduler.RunTaskNow(taskID); {
	case errors.Is(err, scheduler.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrTaskRunning):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "taskId": taskID})
	}
}
