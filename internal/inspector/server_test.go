package inspector

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cgast/chainexpect/pkg/events"
	"github.com/cgast/chainexpect/pkg/history"
	"github.com/cgast/chainexpect/pkg/registry"
)

func newTestServer(t *testing.T) (*Server, *events.MemoryBus, *history.Store) {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	bus := events.NewMemoryBus(0)
	return New(bus, store, registry.Builtins(), nil), bus, store
}

func getJSON(t *testing.T, srv *httptest.Server, path string, want int, out any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		t.Fatalf("GET %s status = %d, want %d", path, resp.StatusCode, want)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
}

func TestStatusAndEvents(t *testing.T) {
	s, bus, _ := newTestServer(t)
	bus.Publish(events.NewEvent(events.EventCheckPass, "a"))
	bus.Publish(events.NewEvent(events.EventCheckFail, "b"))
	bus.Publish(events.NewEvent(events.EventSuiteEnd, nil))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	var status map[string]any
	getJSON(t, srv, "/api/status", http.StatusOK, &status)
	if status["events"] != float64(3) || status["passed"] != float64(1) || status["failed"] != float64(1) || status["runs"] != float64(1) {
		t.Errorf("status = %v", status)
	}

	var evs []events.Event
	getJSON(t, srv, "/api/events", http.StatusOK, &evs)
	if len(evs) != 3 || evs[1].Type != events.EventCheckFail {
		t.Errorf("events = %+v", evs)
	}

	getJSON(t, srv, "/api/events?since=yesterday", http.StatusBadRequest, nil)
}

func TestRuns(t *testing.T) {
	s, _, store := newTestServer(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		if err := store.SaveRun(history.Run{ID: id, Suite: "numbers", Started: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatal(err)
		}
	}

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	var runs []history.Run
	getJSON(t, srv, "/api/runs?limit=1", http.StatusOK, &runs)
	if len(runs) != 1 || runs[0].ID != "new" {
		t.Errorf("runs = %+v", runs)
	}

	var run history.Run
	getJSON(t, srv, "/api/runs/old", http.StatusOK, &run)
	if run.ID != "old" {
		t.Errorf("run = %+v", run)
	}

	getJSON(t, srv, "/api/runs/missing", http.StatusNotFound, nil)
	getJSON(t, srv, "/api/runs?limit=-1", http.StatusBadRequest, nil)
}

func TestSteps(t *testing.T) {
	s, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	var steps []map[string]any
	getJSON(t, srv, "/api/steps?category=core", http.StatusOK, &steps)
	if len(steps) == 0 {
		t.Fatal("expected core steps")
	}
	for _, st := range steps {
		if st["category"] != "core" {
			t.Errorf("step %v not in core", st["name"])
		}
	}
}

func readData(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			return data
		}
	}
}

func TestStreamReplaysAndFollows(t *testing.T) {
	s, bus, _ := newTestServer(t)
	bus.Publish(events.NewEvent(events.EventSuiteStart, "numbers"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/events")
	if err != nil {
		cancel()
		t.Fatalf("GET /events: %v", err)
	}
	r := bufio.NewReader(resp.Body)

	if got := readData(t, r); !strings.Contains(got, `"suite.start"`) {
		t.Errorf("first event = %s", got)
	}
	bus.Publish(events.NewEvent(events.EventCheckFail, "odd numbers"))
	if got := readData(t, r); !strings.Contains(got, `"check.fail"`) {
		t.Errorf("live event = %s", got)
	}

	resp.Body.Close()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
