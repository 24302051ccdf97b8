package in_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	sessionhttp "studypomo/internal/modules/session/adapter/in"
	sessiondto "studypomo/internal/modules/session/dto"
	apperrors "studypomo/internal/platform/errors"
)

type fakeUsecase struct {
	active  *sessiondto.SessionOutput
	created sessiondto.CreateInput
}

func (f *fakeUsecase) Create(_ context.Context, input sessiondto.CreateInput) (sessiondto.SessionOutput, error) {
	if input.SessionType == "nap" {
		return sessiondto.SessionOutput{}, apperrors.ErrInvalidInput
	}
	if f.active != nil {
		return sessiondto.SessionOutput{}, apperrors.ErrActiveSessionExists
	}
	f.created = input
	out := sessiondto.SessionOutput{ID: "s-1", SessionType: input.SessionType, Status: "active", PlannedDuration: input.PlannedDuration, StartedAt: time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)}
	f.active = &out
	return out, nil
}

func (f *fakeUsecase) Complete(_ context.Context, input sessiondto.CompleteInput) (sessiondto.CompleteOutput, error) {
	if f.active == nil || f.active.ID != input.SessionID {
		return sessiondto.CompleteOutput{}, apperrors.ErrNotFound
	}
	out := *f.active
	out.Status = "completed"
	out.ActualDuration = input.ActualDurationMinutes
	out.CompletedAt = out.StartedAt.Add(time.Duration(input.ActualDurationMinutes) * time.Minute)
	f.active = nil
	return sessiondto.CompleteOutput{SessionOutput: out, Path: "/vault/note.md"}, nil
}

func (f *fakeUsecase) Get(_ context.Context, id string) (sessiondto.SessionOutput, error) {
	return sessiondto.SessionOutput{}, apperrors.ErrNotFound
}

func (f *fakeUsecase) List(context.Context, sessiondto.ListInput) ([]sessiondto.SessionOutput, error) {
	return []sessiondto.SessionOutput{{ID: "s-1"}}, nil
}

func (f *fakeUsecase) GetActive(context.Context) (sessiondto.SessionOutput, error) {
	if f.active == nil {
		return sessiondto.SessionOutput{}, apperrors.ErrNoActiveSession
	}
	return *f.active, nil
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestSessionHTTPLifecycle(t *testing.T) {
	t.Parallel()
	uc := &fakeUsecase{}
	srv := httptest.NewServer(sessionhttp.NewHTTPHandler(uc, zerolog.Nop()).Routes())
	t.Cleanup(srv.Close)

	resp := post(t, srv, "/sessions", `{"sessionType":"focus","plannedDuration":25,"settings":{"auto_start":true}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["id"] != "s-1" || created["status"] != "active" {
		t.Fatalf("unexpected body: %v", created)
	}
	if uc.created.Settings != `{"auto_start":true}` {
		t.Fatalf("settings not forwarded: %q", uc.created.Settings)
	}

	if resp := post(t, srv, "/sessions", `{"sessionType":"focus","plannedDuration":25}`); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	active, err := http.Get(srv.URL + "/sessions/active")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	_ = active.Body.Close()
	if active.StatusCode != http.StatusOK {
		t.Fatalf("expected active 200, got %d", active.StatusCode)
	}

	resp = post(t, srv, "/sessions/s-1/complete", `{"actualDurationMinutes":25,"wasInterrupted":false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	done := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&done); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if done["status"] != "completed" || done["notePath"] != "/vault/note.md" || done["completedAt"] == nil {
		t.Fatalf("unexpected completion body: %v", done)
	}
}

func TestSessionHTTPErrorStatuses(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(sessionhttp.NewHTTPHandler(&fakeUsecase{}, zerolog.Nop()).Routes())
	t.Cleanup(srv.Close)

	cases := []struct {
		path, body string
		want       int
	}{
		{"/sessions", `{`, http.StatusBadRequest},
		{"/sessions", `{"sessionType":"nap","plannedDuration":5}`, http.StatusUnprocessableEntity},
		{"/sessions/unknown/complete", `{"actualDurationMinutes":1}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		resp := post(t, srv, tc.path, tc.body)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.path, tc.body, tc.want, resp.StatusCode)
		}
		body := map[string]string{}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body["error"] == "" {
			t.Fatalf("expected error body, got %v (%v)", body, err)
		}
	}

	resp, err := http.Get(srv.URL + "/sessions/active")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without active session, got %d", resp.StatusCode)
	}
}
