package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/boardsight/internal/cups"
	"github.com/ayusman/boardsight/internal/games"
	"github.com/ayusman/boardsight/internal/store"
)

func TestAPI_HistoryWorkflow(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	// Runs reach the store through the recorder the cups game uses.
	recorder := store.NewRunRecorder(s.Runs())
	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	if err := recorder.RecordStart(ctx, cups.Record{ID: "run-1", Required: 2, Status: cups.StatusRunning, StartedAt: started}); err != nil {
		t.Fatalf("RecordStart() error = %v", err)
	}
	if err := recorder.RecordFinish(ctx, cups.Record{ID: "run-1", Required: 2, Status: cups.StatusSettled, Result: "red,blue,-1", StartedAt: started, FinishedAt: started.Add(time.Minute)}); err != nil {
		t.Fatalf("RecordFinish() error = %v", err)
	}

	srv := New(Config{Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	resp, err := client.Get(ts.URL + "/api/runs")
	if err != nil {
		t.Fatalf("GET /api/runs error = %v", err)
	}
	var listed struct {
		Runs []store.Run `json:"runs"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Runs) != 1 || listed.Runs[0].Result != "red,blue,-1" {
		t.Fatalf("runs = %+v, want the settled run", listed.Runs)
	}

	resp, _ = client.Get(ts.URL + "/api/runs/run-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/runs/run-1 status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	resp, _ = client.Get(ts.URL + "/api/runs/run-2")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /api/runs/run-2 status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestAPI_ProcessLogsRequests(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv image decoding in short mode")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	registry := games.NewRegistry()
	err = registry.Register(games.Game{
		Name: "xo",
		Handle: func(context.Context, gocv.Mat) (string, error) {
			return "0,0,0,0,0,0,0,0,0", nil
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	ts := httptest.NewServer(New(Config{Games: registry, Store: s}))
	defer ts.Close()

	img := gocv.NewMatWithSize(16, 16, gocv.MatTypeCV8UC3)
	defer img.Close()
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		t.Fatalf("IMEncode() error = %v", err)
	}
	data := bytes.Clone(buf.GetBytes())
	buf.Close()

	resp, err := ts.Client().Post(ts.URL+"/process?action=xo", "image/png", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST /process error = %v", err)
	}
	body := new(strings.Builder)
	body.ReadFrom(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK || body.String() != "0,0,0,0,0,0,0,0,0" {
		t.Fatalf("got (%d, %q)", resp.StatusCode, body.String())
	}

	resp, _ = ts.Client().Get(ts.URL + "/api/requests?game=xo")
	var listed struct {
		Requests []store.Request `json:"requests"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Requests) != 1 || listed.Requests[0].Status != http.StatusOK {
		t.Errorf("requests = %+v, want one successful xo request", listed.Requests)
	}
}

func TestAPI_EventStream(t *testing.T) {
	hub := NewEventHub(nil)
	ts := httptest.NewServer(New(Config{Events: hub}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with the hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(cups.Event{Type: cups.EventSettled, RunID: "run-7", Result: "red,-1,-1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev cups.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.Type != cups.EventSettled || ev.RunID != "run-7" || ev.Result != "red,-1,-1" {
		t.Errorf("event = %+v", ev)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not removed after closing")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
