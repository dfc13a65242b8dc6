package handlers

import (
	"bufio"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/enrollment"
	"github.com/kozaktomas/face-recognizer/internal/service"
)

// fakeEnroller records calls and lets tests publish progress.
type fakeEnroller struct {
	mu        sync.Mutex
	status    service.Status
	startErr  error
	started   []string
	running   bool
	observers map[int]func(service.Status)
	next      int
}

func newFakeEnroller() *fakeEnroller {
	return &fakeEnroller{
		status:    service.Status{Progress: enrollment.Progress{State: enrollment.StateIdle, StatusMessage: "idle"}},
		observers: make(map[int]func(service.Status)),
	}
}

func (f *fakeEnroller) StartEnrollment(scope string) (service.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return service.Status{}, f.startErr
	}
	f.started = append(f.started, scope)
	f.running = true
	f.status = service.Status{Progress: enrollment.Progress{JobID: "job-1", Scope: scope, State: enrollment.StateDetecting, Running: true}}
	return f.status, nil
}

func (f *fakeEnroller) StopEnrollment() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeEnroller) EnrollmentStatus() service.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeEnroller) ObserveEnrollment(fn func(service.Status)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.observers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.observers, id)
	}
}

func (f *fakeEnroller) publish(st service.Status) {
	f.mu.Lock()
	f.status = st
	f.running = st.Running
	observers := make([]func(service.Status), 0, len(f.observers))
	for _, fn := range f.observers {
		observers = append(observers, fn)
	}
	f.mu.Unlock()

	for _, fn := range observers {
		fn(st)
	}
}

func (f *fakeEnroller) observerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}

func TestEnrollmentHandler_Start(t *testing.T) {
	tests := []struct {
		name      string
		body      any
		wantScope string
	}{
		{"empty body", nil, "all"},
		{"empty subject", map[string]string{}, "all"},
		{"one subject", map[string]string{"subject": "Rick"}, "Rick"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enroller := newFakeEnroller()
			handler := NewEnrollmentHandler(enroller, zap.NewNop())
			defer handler.Close()

			recorder := httptest.NewRecorder()
			handler.Start(recorder, jsonRequest(t, http.MethodPost, "/api/v1/enrollment", tc.body))

			assertStatusCode(t, recorder, http.StatusAccepted)
			var status service.Status
			parseJSONResponse(t, recorder, &status)
			if status.Scope != tc.wantScope {
				t.Errorf("expected scope %q, got %q", tc.wantScope, status.Scope)
			}
			if !status.Running || status.JobID != "job-1" {
				t.Errorf("expected running job-1, got %+v", status.Progress)
			}
		})
	}
}

func TestEnrollmentHandler_StartErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		startErr   error
		wantStatus int
		wantError  string
	}{
		{"invalid body", "{", nil, http.StatusBadRequest, errInvalidRequestBody},
		{"already running", nil, enrollment.ErrAlreadyRunning, http.StatusConflict, enrollment.ErrAlreadyRunning.Error()},
		{"unexpected", nil, errors.New("boom"), http.StatusInternalServerError, "failed to start enrollment"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enroller := newFakeEnroller()
			enroller.startErr = tc.startErr
			handler := NewEnrollmentHandler(enroller, zap.NewNop())
			defer handler.Close()

			recorder := httptest.NewRecorder()
			handler.Start(recorder, jsonRequest(t, http.MethodPost, "/api/v1/enrollment", tc.body))

			assertStatusCode(t, recorder, tc.wantStatus)
			assertJSONError(t, recorder, tc.wantError)
		})
	}
}

func TestEnrollmentHandler_StatusAndStop(t *testing.T) {
	enroller := newFakeEnroller()
	handler := NewEnrollmentHandler(enroller, zap.NewNop())
	defer handler.Close()

	recorder := httptest.NewRecorder()
	handler.Status(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/enrollment", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	var status service.Status
	parseJSONResponse(t, recorder, &status)
	if status.State != enrollment.StateIdle {
		t.Errorf("expected idle, got %q", status.State)
	}

	recorder = httptest.NewRecorder()
	handler.Stop(recorder, httptest.NewRequest(http.MethodDelete, "/api/v1/enrollment", nil))
	assertStatusCode(t, recorder, http.StatusConflict)
	assertJSONError(t, recorder, "no enrollment is running")

	if _, err := enroller.StartEnrollment("all"); err != nil {
		t.Fatal(err)
	}
	recorder = httptest.NewRecorder()
	handler.Stop(recorder, httptest.NewRequest(http.MethodDelete, "/api/v1/enrollment", nil))
	assertStatusCode(t, recorder, http.StatusAccepted)
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["message"] != enrollment.MsgStopped {
		t.Errorf("expected stop message, got %v", result["message"])
	}
}

func TestEnrollmentHandler_Close(t *testing.T) {
	enroller := newFakeEnroller()
	handler := NewEnrollmentHandler(enroller, zap.NewNop())
	if enroller.observerCount() != 1 {
		t.Fatalf("expected handler to observe progress, got %d observers", enroller.observerCount())
	}

	handler.Close()
	if enroller.observerCount() != 0 {
		t.Errorf("expected observer removed on close, got %d", enroller.observerCount())
	}
}

// readEvents collects the event names of an SSE stream until it ends.
func readEvents(t *testing.T, resp *http.Response, onEvent func(name string)) []string {
	t.Helper()
	var names []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			names = append(names, name)
			if onEvent != nil {
				onEvent(name)
			}
		}
	}
	return names
}

func TestEnrollmentHandler_EventsIdle(t *testing.T) {
	enroller := newFakeEnroller()
	handler := NewEnrollmentHandler(enroller, zap.NewNop())
	defer handler.Close()

	server := httptest.NewServer(http.HandlerFunc(handler.Events))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected event stream, got %q", ct)
	}
	names := readEvents(t, resp, nil)
	if len(names) != 1 || names[0] != EventStatus {
		t.Errorf("expected a single status event, got %v", names)
	}
}

func TestEnrollmentHandler_EventsStream(t *testing.T) {
	enroller := newFakeEnroller()
	handler := NewEnrollmentHandler(enroller, zap.NewNop())
	defer handler.Close()
	if _, err := enroller.StartEnrollment("Rick"); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(handler.Events))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	running := enrollment.Progress{Scope: "Rick", State: enrollment.StateEmbedding, Running: true, Percent: 75}
	done := enrollment.Progress{Scope: "Rick", State: enrollment.StateComplete, Percent: 100, StatusMessage: "processing complete: 2 embeddings saved"}

	finished := make(chan []string)
	go func() {
		finished <- readEvents(t, resp, func(name string) {
			if name == EventStatus {
				enroller.publish(service.Status{Progress: running})
				enroller.publish(service.Status{Progress: done, TotalEmbeddings: 2})
			}
		})
	}()

	select {
	case names := <-finished:
		want := []string{EventStatus, EventProgress, EventComplete}
		if strings.Join(names, ",") != strings.Join(want, ",") {
			t.Errorf("expected events %v, got %v", want, names)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event stream did not end after the terminal event")
	}
}
