package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/genstudio/internal/auth"
	"github.com/hitoshi/genstudio/internal/middleware"
	"github.com/hitoshi/genstudio/internal/model"
)

type mockResolver struct {
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockResolver) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	return m.getCurrentUserFn(ctx, sessionID)
}

func resolverFor(sessionID string, user *model.User) *mockResolver {
	return &mockResolver{
		getCurrentUserFn: func(_ context.Context, id string) (*model.User, error) {
			if id == sessionID {
				return user, nil
			}
			return nil, errors.New("session not found")
		},
	}
}

var gateTestUser = &model.User{ID: "user-1", Email: "alice@example.com", Name: "Alice"}

func getPage(h *GateHandler, sessionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	w := httptest.NewRecorder()
	h.Page(w, req)
	return w
}

func TestGateHandler_Page_SignInWithoutSession(t *testing.T) {
	h := NewGateHandler(resolverFor("s1", gateTestUser), auth.NewHub(), GateHandlerConfig{}, nil)

	w := getPage(h, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data-view="signin"`) {
		t.Errorf("expected sign-in view, got:\n%s", body)
	}
	if !strings.Contains(body, `href="/auth/google/login"`) {
		t.Error("sign-in view must link to the login entry point")
	}
	if strings.Contains(body, `data-field="style"`) {
		t.Error("sign-in view must not render the generation forms")
	}
}

func TestGateHandler_Page_InvalidSessionShowsSignIn(t *testing.T) {
	h := NewGateHandler(resolverFor("s1", gateTestUser), auth.NewHub(), GateHandlerConfig{}, nil)

	if body := getPage(h, "expired").Body.String(); !strings.Contains(body, `data-view="signin"`) {
		t.Errorf("expected sign-in view for unknown session")
	}
}

func TestGateHandler_Page_ToolForSignedInUser(t *testing.T) {
	h := NewGateHandler(resolverFor("s1", gateTestUser), auth.NewHub(), GateHandlerConfig{}, nil)

	w := getPage(h, "s1")
	body := w.Body.String()
	if !strings.Contains(body, `data-view="tool"`) {
		t.Fatalf("expected tool view, got:\n%s", body)
	}
	if !strings.Contains(body, "Alice") {
		t.Error("tool view should show the user name")
	}
	for _, want := range []string{`value="watercolor"`, `value="1536x1024"`, `value="16:9"`, `value="10"`} {
		if !strings.Contains(body, want) {
			t.Errorf("tool view missing option %s", want)
		}
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}

func TestGateHandler_Page_LoadingWhenResolveIsSlow(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	resolver := &mockResolver{
		getCurrentUserFn: func(context.Context, string) (*model.User, error) {
			<-release
			return gateTestUser, nil
		},
	}
	h := NewGateHandler(resolver, auth.NewHub(), GateHandlerConfig{ResolveTimeout: 20 * time.Millisecond}, nil)

	body := getPage(h, "s1").Body.String()
	if !strings.Contains(body, `data-view="loading"`) {
		t.Errorf("expected loading view, got:\n%s", body)
	}
	if strings.Contains(body, "Sign in with Google") {
		t.Error("loading view must not offer sign-in")
	}
}

// readStateEvents はSSEストリームからstateイベントを読み、チャネルに流す。
func readStateEvents(t *testing.T, resp *http.Response) <-chan authStateEvent {
	t.Helper()
	events := make(chan authStateEvent, 8)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var ev authStateEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				continue
			}
			events <- ev
		}
	}()
	return events
}

func waitForView(t *testing.T, events <-chan authStateEvent, view string) authStateEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("stream closed before view %q", view)
			}
			if ev.View == view {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for view %q", view)
		}
	}
}

func TestGateHandler_StateStream_FollowsLogout(t *testing.T) {
	hub := auth.NewHub()
	h := NewGateHandler(resolverFor("s1", gateTestUser), hub, GateHandlerConfig{KeepAlive: time.Hour}, nil)
	srv := httptest.NewServer(http.HandlerFunc(h.StateStream))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "s1"})

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := readStateEvents(t, resp)
	ev := waitForView(t, events, "tool")
	if ev.User == nil || ev.User.Email != "alice@example.com" || ev.IsLoading {
		t.Errorf("tool event = %+v", ev)
	}

	// ログアウトが別の接続から通知される
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("s1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.Publish("s1", auth.State{})

	ev = waitForView(t, events, "signin")
	if ev.User != nil || ev.LoginURL != "/auth/google/login" {
		t.Errorf("signin event = %+v", ev)
	}
}

func TestGateHandler_StateStream_AnonymousGetsSignIn(t *testing.T) {
	h := NewGateHandler(resolverFor("s1", gateTestUser), auth.NewHub(), GateHandlerConfig{}, nil)
	srv := httptest.NewServer(http.HandlerFunc(h.StateStream))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	waitForView(t, readStateEvents(t, resp), "signin")
}

func TestNewAuthStateEvent(t *testing.T) {
	tests := []struct {
		name    string
		state   auth.State
		view    string
		loading bool
	}{
		{"loading", auth.State{IsLoading: true}, "loading", true},
		{"signed out", auth.State{}, "signin", false},
		{"signed in", auth.State{User: gateTestUser}, "tool", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := newAuthStateEvent(tt.state, "/login")
			if ev.View != tt.view || ev.IsLoading != tt.loading || ev.LoginURL != "/login" {
				t.Errorf("event = %+v", ev)
			}
			if (ev.User != nil) != (tt.state.User != nil) {
				t.Errorf("user = %+v", ev.User)
			}
		})
	}
}
