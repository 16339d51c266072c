package e2e

import (
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/boardsight/internal/app"
	"github.com/ayusman/boardsight/internal/capture"
	"github.com/ayusman/boardsight/internal/config"
	"github.com/ayusman/boardsight/internal/cups"
	"github.com/ayusman/boardsight/internal/logging"
	"github.com/ayusman/boardsight/internal/store"
	"github.com/ayusman/boardsight/testdata"
)

// coveredCamera shows the cups once, then an empty table: the cups were
// lowered over the pieces.
type coveredCamera struct {
	mu     sync.Mutex
	cups   gocv.Mat
	empty  gocv.Mat
	reads  int
	opened bool
}

func (c *coveredCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = true
	return nil
}

func (c *coveredCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = false
	return nil
}

func (c *coveredCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return nil, capture.ErrCameraNotOpen
	}
	src := c.empty
	if c.reads == 0 {
		src = c.cups
	}
	c.reads++
	m := src.Clone()
	return &m, nil
}

func (c *coveredCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// heldTracker keeps reporting its initial box.
type heldTracker struct{ box image.Rectangle }

func (t *heldTracker) Init(_ gocv.Mat, box image.Rectangle) bool {
	t.box = box
	return true
}

func (t *heldTracker) Update(gocv.Mat) (image.Rectangle, bool) { return t.box, true }
func (t *heldTracker) Close() error                            { return nil }

type heldTrackers struct{}

func (heldTrackers) NewTracker(cups.Algorithm) gocv.Tracker { return &heldTracker{} }

func settings(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Plugins.Dir = filepath.Join(dir, "plugins")
	cfg.Cups.DisappearanceThreshold = 0.05
	cfg.Cups.StopTime = 0.1
	cfg.Colors = []config.Color{
		{Name: "red", BGR: []int{0, 0, 255}},
		{Name: "blue", BGR: []int{255, 0, 0}},
		{Name: "green", BGR: []int{0, 255, 0}},
	}
	return &cfg
}

func TestE2E_CupsRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	cam := &coveredCamera{
		cups: testdata.Board(
			testdata.Piece{Box: testdata.ZoneBox(0), Color: testdata.Red},
			testdata.Piece{Box: testdata.ZoneBox(1), Color: testdata.Blue},
			testdata.Piece{Box: testdata.ZoneBox(2), Color: testdata.Green},
		),
		empty: testdata.Board(),
	}
	defer cam.cups.Close()
	defer cam.empty.Close()

	application, err := app.New(app.Config{
		Settings:   settings(t),
		Logger:     logging.Discard(),
		OpenCamera: func(string) capture.Camera { return cam },
		Trackers:   heldTrackers{},
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer application.Close()

	ts := httptest.NewServer(application.Handler())
	defer ts.Close()
	client := ts.Client()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for application.Events().Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("event client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var runID string
	t.Run("Start", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/cups/start?required=3", "", nil)
		if err != nil {
			t.Fatalf("start error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
		}
		var started struct {
			RunID string `json:"run_id"`
		}
		json.NewDecoder(resp.Body).Decode(&started)
		runID = started.RunID
		if runID == "" {
			t.Fatal("expected a run id")
		}
	})

	t.Run("Events", func(t *testing.T) {
		var types []cups.EventType
		conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		for {
			var ev cups.Event
			if err := conn.ReadJSON(&ev); err != nil {
				t.Fatalf("ReadJSON() error = %v (events so far %v)", err, types)
			}
			types = append(types, ev.Type)
			if ev.Type == cups.EventFailed || ev.Type == cups.EventAborted {
				t.Fatalf("run ended with %s: %s", ev.Type, ev.Error)
			}
			if ev.Type == cups.EventSettled {
				if ev.RunID != runID || ev.Result != "red,blue,green" {
					t.Errorf("settled event = %+v", ev)
				}
				break
			}
		}
		if types[0] != cups.EventStarted {
			t.Errorf("first event = %s, want %s", types[0], cups.EventStarted)
		}
	})

	application.Cups().Wait()

	t.Run("Result", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/cups/result")
		if err != nil {
			t.Fatalf("result error = %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if string(body) != "red,blue,green" {
			t.Errorf("result = %q, want red,blue,green", body)
		}
	})

	t.Run("History", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/runs/" + runID)
		if err != nil {
			t.Fatalf("get run error = %v", err)
		}
		defer resp.Body.Close()

		var run store.Run
		json.NewDecoder(resp.Body).Decode(&run)
		if run.Status != "settled" || run.Result != "red,blue,green" || run.Required != 3 {
			t.Errorf("run = %+v", run)
		}
	})

	t.Run("CameraReleased", func(t *testing.T) {
		if cam.IsOpen() {
			t.Error("camera still open after the run settled")
		}
	})
}

func TestE2E_SecondStartRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	empty := testdata.Board()
	defer empty.Close()
	cam := &coveredCamera{cups: empty, empty: empty}

	application, err := app.New(app.Config{
		Settings:   settings(t),
		Logger:     logging.Discard(),
		OpenCamera: func(string) capture.Camera { return cam },
		Trackers:   heldTrackers{},
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer application.Close()

	ts := httptest.NewServer(application.Handler())
	defer ts.Close()
	client := ts.Client()

	post := func(path string) int {
		resp, err := client.Post(ts.URL+path, "", nil)
		if err != nil {
			t.Fatalf("POST %s error = %v", path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	// An empty table never leaves the idle phase, so the run stays active.
	if code := post("/api/cups/start?required=2"); code != http.StatusAccepted {
		t.Fatalf("first start = %d, want %d", code, http.StatusAccepted)
	}
	if code := post("/api/cups/start?required=2"); code != http.StatusConflict {
		t.Errorf("second start = %d, want %d", code, http.StatusConflict)
	}
	if code := post("/api/cups/abort"); code != http.StatusAccepted {
		t.Errorf("abort = %d, want %d", code, http.StatusAccepted)
	}
	application.Cups().Wait()

	runs, err := application.Store().Runs().List(t.Context(), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Status != "aborted" {
		t.Errorf("runs = %+v, want one aborted run", runs)
	}
}
