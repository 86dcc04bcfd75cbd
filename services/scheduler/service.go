package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskRunning  = errors.New("task is already running")
)

const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Task is a maintenance job run every Interval. Run reports how many items it touched.
type Task struct {
	ID       string
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// TaskStatus is the externally visible state of a task.
type TaskStatus struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Interval   string     `json:"interval"`
	LastRunAt  *time.Time `json:"lastRunAt,omitempty"`
	LastStatus string     `json:"lastStatus"`
	LastError  string     `json:"lastError,omitempty"`
	Items      int        `json:"items"`
}

type taskState struct {
	task      Task
	lastRunAt *time.Time
	status    string
	lastError string
	items     int
	running   bool
}

// Service manages scheduled task execution
type Service struct {
	checkInterval time.Duration
	now           func() time.Time

	// Runtime state
	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Task state is in memory only; every task runs once after startup.
	taskMu sync.Mutex
	order  []string
	tasks  map[string]*taskState
}

// NewService creates a scheduler that looks for due tasks every checkInterval.
func NewService(checkInterval time.Duration, tasks ...Task) *Service {
	if checkInterval < time.Second {
		checkInterval = time.Minute
	}
	s := &Service{
		checkInterval: checkInterval,
		now:           time.Now,
		tasks:         make(map[string]*taskState, len(tasks)),
	}
	for _, t := range tasks {
		if t.Run == nil || t.ID == "" {
			continue
		}
		if t.Name == "" {
			t.Name = t.ID
		}
		if _, dup := s.tasks[t.ID]; !dup {
			s.order = append(s.order, t.ID)
		}
		s.tasks[t.ID] = &taskState{task: t, status: StatusPending}
	}
	return s
}

// Start begins the scheduler background loop
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop()
	log.Printf("[scheduler] started with %d tasks", len(s.order))
}

// Stop cancels running tasks and waits for them until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("[scheduler] stopped")
	case <-ctx.Done():
		log.Println("[scheduler] stopped (timeout)")
	}
	s.running = false
}

func (s *Service) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.runDue()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runDue()
		}
	}
}

// runDue starts every task whose interval has elapsed.
func (s *Service) runDue() {
	now := s.now()
	s.taskMu.Lock()
	var due []*taskState
	for _, id := range s.order {
		st := s.tasks[id]
		if st.running {
			continue
		}
		if st.lastRunAt == nil || now.Sub(*st.lastRunAt) >= st.task.Interval {
			st.running = true
			due = append(due, st)
		}
	}
	s.taskMu.Unlock()

	for _, st := range due {
		s.wg.Add(1)
		go func(st *taskState) {
			defer s.wg.Done()
			s.execute(s.ctx, st)
		}(st)
	}
}

// execute runs a task already marked running and records the outcome.
func (s *Service) execute(ctx context.Context, st *taskState) {
	log.Printf("[scheduler] executing task %s", st.task.ID)
	items, err := safeRun(ctx, st.task)

	finished := s.now().UTC()
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	st.running = false
	st.lastRunAt = &finished
	st.items = items
	if err != nil {
		st.status = StatusError
		st.lastError = err.Error()
		log.Printf("[scheduler] task %s failed: %v", st.task.ID, err)
		return
	}
	st.status = StatusSuccess
	st.lastError = ""
	log.Printf("[scheduler] task %s completed, %d items", st.task.ID, items)
}

func safeRun(ctx context.Context, t Task) (items int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Run(ctx)
}

// RunTaskNow triggers immediate execution of a task
func (s *Service) RunTaskNow(taskID string) error {
	s.taskMu.Lock()
	st, ok := s.tasks[taskID]
	if !ok {
		s.taskMu.Unlock()
		return ErrTaskNotFound
	}
	if st.running {
		s.taskMu.Unlock()
		return ErrTaskRunning
	}
	st.running = true
	s.taskMu.Unlock()

	ctx := context.Background()
	s.mu.Lock()
	if s.running {
		ctx = s.ctx
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, st)
	}()
	return nil
}

// Status returns all tasks in registration order.
func (s *Service) Status() []TaskStatus {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	out := make([]TaskStatus, 0, len(s.order))
	for _, id := range s.order {
		st := s.tasks[id]
		status := st.status
		if st.running {
			status = StatusRunning
		}
		out = append(out, TaskStatus{
			ID:         id,
			Name:       st.task.Name,
			Interval:   st.task.Interval.String(),
			LastRunAt:  st.lastRunAt,
			LastStatus: status,
			LastError:  st.lastError,
			Items:      st.items,
		})
	}
	return out
}
