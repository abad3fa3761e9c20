package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/wricardo/partyroom/game/clock"
	"github.com/wricardo/partyroom/game/config"
	"github.com/wricardo/partyroom/game/protocol"
	"github.com/wricardo/partyroom/game/session"
	"github.com/wricardo/partyroom/transport/websocket"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent map[string][]protocol.Envelope
}

func (f *fakeTransport) Send(playerID string, env protocol.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[playerID] = append(f.sent[playerID], env)
}

func (f *fakeTransport) Close(string) {}

func (f *fakeTransport) notices(playerID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, env := range f.sent[playerID] {
		if msg, ok := env.Data.(protocol.SystemMessage); ok {
			out = append(out, msg.Message)
		}
	}
	return out
}

// roomView mirrors session.Snapshot without the per-game configs, which
// decode to an interface.
type roomView struct {
	ID      string                `json:"id"`
	Status  session.Status        `json:"status"`
	Players []protocol.PlayerView `json:"players"`
}

// Test helpers
func setupTestServer(t *testing.T, configs *config.Manager) (*Server, *session.Registry, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{sent: make(map[string][]protocol.Envelope)}
	reg := session.NewRegistry(tr, session.Options{
		NewExecutor: func() (clock.Executor, func()) { return clock.Inline{}, func() {} },
	})
	return NewServer(reg, websocket.NewHub(nil), configs, nil), reg, tr
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	server, _, _ := setupTestServer(t, nil)
	w := serve(server, makeRequest("GET", "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp map[string]string
	parseResponse(t, w, &resp)
	if resp["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", resp)
	}
}

func TestStats(t *testing.T) {
	server, reg, _ := setupTestServer(t, nil)
	reg.Join("p1", "alpha", "Ann")
	reg.Join("p2", "beta", "Bo")

	w := serve(server, makeRequest("GET", "/api/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		Rooms       int `json:"rooms"`
		Players     int `json:"players"`
		Connections int `json:"connections"`
	}
	parseResponse(t, w, &resp)
	if resp.Rooms != 2 || resp.Players != 2 || resp.Connections != 0 {
		t.Errorf("Unexpected stats: %+v", resp)
	}
}

func TestListRooms(t *testing.T) {
	server, reg, _ := setupTestServer(t, nil)

	type listResponse struct {
		Count int        `json:"count"`
		Total int        `json:"total"`
		Rooms []roomView `json:"rooms"`
	}

	t.Run("empty", func(t *testing.T) {
		var resp listResponse
		parseResponse(t, serve(server, makeRequest("GET", "/api/rooms", nil)), &resp)
		if resp.Count != 0 || resp.Rooms == nil {
			t.Errorf("Expected empty non-null list, got %+v", resp)
		}
	})

	reg.Join("p1", "alpha", "Ann")
	reg.Join("p2", "alpha", "Bo")
	reg.Join("p3", "beta", "Cy")
	reg.Join("p4", "gamma", "Di")

	tests := []struct {
		name          string
		query         string
		expectedCount int
		expectedTotal int
		firstID       string
	}{
		{name: "all rooms sorted by id", query: "", expectedCount: 3, expectedTotal: 3, firstID: "alpha"},
		{name: "limit", query: "?limit=2", expectedCount: 2, expectedTotal: 3, firstID: "alpha"},
		{name: "invalid limit ignored", query: "?limit=abc", expectedCount: 3, expectedTotal: 3, firstID: "alpha"},
		{name: "status filter", query: "?status=waiting", expectedCount: 3, expectedTotal: 3, firstID: "alpha"},
		{name: "status filter without match", query: "?status=playing", expectedCount: 0, expectedTotal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(server, makeRequest("GET", "/api/rooms"+tt.query, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			var resp listResponse
			parseResponse(t, w, &resp)
			if resp.Count != tt.expectedCount || resp.Total != tt.expectedTotal {
				t.Errorf("Expected count %d total %d, got %d %d", tt.expectedCount, tt.expectedTotal, resp.Count, resp.Total)
			}
			if tt.firstID != "" && (len(resp.Rooms) == 0 || resp.Rooms[0].ID != tt.firstID) {
				t.Errorf("Expected first room %s, got %+v", tt.firstID, resp.Rooms)
			}
		})
	}
}

func TestGetRoom(t *testing.T) {
	server, reg, _ := setupTestServer(t, nil)
	reg.Join("p1", "alpha", "Ann")
	reg.Join("p2", "alpha", "Bo")

	t.Run("found", func(t *testing.T) {
		w := serve(server, makeRequest("GET", "/api/rooms/ALPHA", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var snap roomView
		parseResponse(t, w, &snap)
		if snap.ID != "alpha" || snap.Status != session.StatusWaiting {
			t.Errorf("Unexpected room: %+v", snap)
		}
		if len(snap.Players) != 2 || !snap.Players[0].Host || snap.Players[1].Host {
			t.Errorf("Expected Ann as host of 2 players, got %+v", snap.Players)
		}
		if snap.Players[0].Color == snap.Players[1].Color {
			t.Errorf("Expected distinct colors, got %s twice", snap.Players[0].Color)
		}
	})

	t.Run("not found", func(t *testing.T) {
		w := serve(server, makeRequest("GET", "/api/rooms/nope", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestNotice(t *testing.T) {
	server, reg, tr := setupTestServer(t, nil)
	reg.Join("p1", "alpha", "Ann")

	tests := []struct {
		name           string
		path           string
		body           interface{}
		expectedStatus int
	}{
		{name: "delivered", path: "/api/rooms/alpha/notice", body: map[string]string{"message": " hello "}, expectedStatus: http.StatusOK},
		{name: "blank message", path: "/api/rooms/alpha/notice", body: map[string]string{"message": "  "}, expectedStatus: http.StatusBadRequest},
		{name: "unknown room", path: "/api/rooms/nope/notice", body: map[string]string{"message": "hi"}, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(server, makeRequest("POST", tt.path, tt.body))
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/rooms/alpha/notice", strings.NewReader("{"))
		if w := serve(server, req); w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	if got := tr.notices("p1"); len(got) != 1 || got[0] != "hello" {
		t.Errorf("Expected one trimmed notice, got %v", got)
	}
}

func TestListGames(t *testing.T) {
	server, _, _ := setupTestServer(t, nil)

	w := serve(server, makeRequest("GET", "/api/games", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
		Games []struct {
			Type   string         `json:"type"`
			Config map[string]any `json:"config"`
		} `json:"games"`
	}
	parseResponse(t, w, &resp)
	if resp.Count != 3 {
		t.Fatalf("Expected 3 games, got %d", resp.Count)
	}
	want := []string{"cellmatch", "minefield", "rope"}
	for i, g := range resp.Games {
		if g.Type != want[i] {
			t.Errorf("Expected game %d to be %s, got %s", i, want[i], g.Type)
		}
	}
	if resp.Games[0].Config["rows"] != float64(10) {
		t.Errorf("Expected built-in cellmatch rows 10, got %v", resp.Games[0].Config["rows"])
	}
}

func TestGetGame(t *testing.T) {
	server, _, _ := setupTestServer(t, nil)

	t.Run("known", func(t *testing.T) {
		w := serve(server, makeRequest("GET", "/api/games/minefield", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp struct {
			Type   string         `json:"type"`
			Config map[string]any `json:"config"`
		}
		parseResponse(t, w, &resp)
		if resp.Type != "minefield" || resp.Config["mines"] != float64(99) {
			t.Errorf("Unexpected defaults: %+v", resp)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if w := serve(server, makeRequest("GET", "/api/games/chess", nil)); w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestUpdateGame(t *testing.T) {
	dir := t.TempDir()
	manager, err := config.NewManager(dir, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer manager.Close()
	server, _, _ := setupTestServer(t, manager)

	t.Run("saves sanitized defaults", func(t *testing.T) {
		body := map[string]any{"rows": 12, "cols": 999}
		w := serve(server, makeRequest("PUT", "/api/games/cellmatch", body))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp struct {
			Config config.CellMatchConfig `json:"config"`
		}
		parseResponse(t, w, &resp)
		if resp.Config.Rows != 12 || resp.Config.Cols != 17 {
			t.Errorf("Expected rows 12 and default cols 17, got %+v", resp.Config)
		}
		if _, err := os.Stat(filepath.Join(dir, "cellmatch.json")); err != nil {
			t.Errorf("Expected cellmatch.json to be written: %v", err)
		}
	})

	t.Run("later reads see the update", func(t *testing.T) {
		var resp struct {
			Config map[string]any `json:"config"`
		}
		parseResponse(t, serve(server, makeRequest("GET", "/api/games/cellmatch", nil)), &resp)
		if resp.Config["rows"] != float64(12) {
			t.Errorf("Expected rows 12, got %v", resp.Config["rows"])
		}
	})

	t.Run("unknown game", func(t *testing.T) {
		if w := serve(server, makeRequest("PUT", "/api/games/chess", map[string]any{})); w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest("PUT", "/api/games/rope", strings.NewReader("[1,2"))
		if w := serve(server, req); w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("read-only without manager", func(t *testing.T) {
		readOnly, _, _ := setupTestServer(t, nil)
		if w := serve(readOnly, makeRequest("PUT", "/api/games/rope", map[string]any{})); w.Code != http.StatusNotImplemented {
			t.Errorf("Expected status 501, got %d", w.Code)
		}
	})
}

func TestWebSocket(t *testing.T) {
	t.Run("unknown codec", func(t *testing.T) {
		server, _, _ := setupTestServer(t, nil)
		w := serve(server, makeRequest("GET", "/ws?codec=xml", nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("join over the gateway", func(t *testing.T) {
		hub := websocket.NewHub(nil)
		reg := session.NewRegistry(hub, session.Options{})
		defer reg.Close()
		hub.Attach(reg)

		ts := httptest.NewServer(NewServer(reg, hub, nil, nil))
		defer ts.Close()

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
		conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer conn.Close()

		join := map[string]any{"type": "join_room", "data": map[string]string{"roomId": "lobby", "name": "Ann"}}
		if err := conn.WriteJSON(join); err != nil {
			t.Fatalf("WriteJSON failed: %v", err)
		}

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			var env struct {
				Type string `json:"type"`
				Data struct {
					RoomID  string `json:"roomId"`
					Index   int    `json:"index"`
					Players []struct {
						Name string `json:"name"`
						Host bool   `json:"host"`
					} `json:"players"`
				} `json:"data"`
			}
			if err := conn.ReadJSON(&env); err != nil {
				t.Fatalf("ReadJSON failed: %v", err)
			}
			if env.Type != "room_update" {
				continue
			}
			if env.Data.RoomID != "lobby" || env.Data.Index != 0 {
				t.Errorf("Unexpected room update: %+v", env.Data)
			}
			if len(env.Data.Players) != 1 || env.Data.Players[0].Name != "Ann" || !env.Data.Players[0].Host {
				t.Errorf("Expected Ann as host, got %+v", env.Data.Players)
			}
			break
		}
	})
}
