package session

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/partyroom/game/cellmatch"
	"github.com/wricardo/partyroom/game/clock"
	"github.com/wricardo/partyroom/game/config"
	"github.com/wricardo/partyroom/game/engine/enginetest"
	"github.com/wricardo/partyroom/game/protocol"
)

type fakeTransport struct {
	mu     sync.Mutex
	sent   map[string][]protocol.Envelope
	closed map[string]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sent:   make(map[string][]protocol.Envelope),
		closed: make(map[string]int),
	}
}

func (f *fakeTransport) Send(playerID string, env protocol.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[playerID] = append(f.sent[playerID], env)
}

func (f *fakeTransport) Close(playerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed[playerID]++
}

func (f *fakeTransport) of(playerID, packetType string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, env := range f.sent[playerID] {
		if env.Type == packetType {
			out = append(out, env.Data)
		}
	}
	return out
}

func (f *fakeTransport) types(playerID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, env := range f.sent[playerID] {
		out = append(out, env.Type)
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = make(map[string][]protocol.Envelope)
}

func (f *fakeTransport) lastRoom(t *testing.T, playerID string) protocol.RoomUpdate {
	t.Helper()
	updates := f.of(playerID, protocol.TypeRoomUpdate)
	if len(updates) == 0 {
		t.Fatalf("No room_update for %s", playerID)
	}
	return updates[len(updates)-1].(protocol.RoomUpdate)
}

func testOptions(manual *clock.Manual) Options {
	return Options{
		DefaultGame:  config.CellMatch,
		NewScheduler: func(clock.Executor) clock.Scheduler { return manual },
		Rand:         rand.New(rand.NewPCG(1, 2)),
	}
}

func newTestSession(t *testing.T, players ...string) (*Session, *fakeTransport, *clock.Manual) {
	t.Helper()
	tr := newFakeTransport()
	manual := clock.NewManual(time.Unix(1700000000, 0))
	s := New("room", tr, clock.Inline{}, testOptions(manual))
	for _, id := range players {
		if err := s.Join(id, "name-"+id); err != nil {
			t.Fatalf("Join %s failed: %v", id, err)
		}
	}
	tr.reset()
	return s, tr, manual
}

func packet(packetType string, data any) protocol.Packet {
	return enginetest.Packet(packetType, data)
}

func TestJoin(t *testing.T) {
	s, tr, _ := newTestSession(t)

	if err := s.Join("a", "Alice"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := s.Join("b", "  "); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if !s.IsHost("a") || s.IsHost("b") {
		t.Error("First joiner should be host")
	}

	a := tr.lastRoom(t, "a")
	b := tr.lastRoom(t, "b")
	if a.Index != 0 || b.Index != 1 {
		t.Errorf("Expected personalised indices 0 and 1, got %d and %d", a.Index, b.Index)
	}
	if len(b.Players) != 2 || !b.Players[0].Host || b.Players[1].Name != "Player 2" {
		t.Errorf("Unexpected roster %+v", b.Players)
	}
	if b.Players[0].Color == b.Players[1].Color {
		t.Error("Players share a color")
	}
	if b.GameType != string(config.CellMatch) || len(b.Configs) != 3 {
		t.Errorf("Unexpected game settings %q %v", b.GameType, b.Configs)
	}

	t.Run("joining twice is a no-op", func(t *testing.T) {
		tr.reset()
		if err := s.Join("a", "Again"); err != nil {
			t.Fatalf("Join failed: %v", err)
		}
		if len(s.Players()) != 2 || len(tr.types("a")) != 0 {
			t.Error("Second join changed the room")
		}
	})
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Bob  ", "Bob"},
		{"", "Player 3"},
		{strings.Repeat("x", 30), strings.Repeat("x", MaxNameLength)},
		{strings.Repeat("é", 30), strings.Repeat("é", MaxNameLength)},
	}
	for _, tt := range tests {
		if got := cleanName(tt.in, 3); got != tt.want {
			t.Errorf("cleanName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJoinFullRoom(t *testing.T) {
	tr := newFakeTransport()
	opts := testOptions(clock.NewManual(time.Now()))
	opts.Capacity = 2
	s := New("room", tr, clock.Inline{}, opts)

	_ = s.Join("a", "A")
	_ = s.Join("b", "B")
	err := s.Join("c", "C")

	if err == nil || !strings.Contains(err.Error(), ErrRoomFull.Error()) {
		t.Fatalf("Expected ErrRoomFull, got %v", err)
	}
	if msgs := tr.of("c", protocol.TypeSystemMessage); len(msgs) != 1 {
		t.Errorf("Expected one system message, got %d", len(msgs))
	}
	if tr.closed["c"] != 1 {
		t.Error("Rejected connection was not closed")
	}
	if _, ok := s.Player("c"); ok {
		t.Error("Rejected player is in the roster")
	}
}

func TestCapacityCappedByPalette(t *testing.T) {
	opts := testOptions(clock.NewManual(time.Now()))
	opts.Capacity = 100
	s := New("room", newFakeTransport(), clock.Inline{}, opts)
	if s.capacity != 8 {
		t.Errorf("Expected capacity 8, got %d", s.capacity)
	}
}

func TestJoinWhilePlaying(t *testing.T) {
	s, tr, _ := newTestSession(t, "a")
	if err := s.StartGame(); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	if err := s.Join("late", "Late"); err != ErrGameInProgress {
		t.Errorf("Expected ErrGameInProgress, got %v", err)
	}
	if tr.closed["late"] != 1 || len(tr.of("late", protocol.TypeSystemMessage)) != 1 {
		t.Error("Late joiner should be told and disconnected")
	}
}

func TestHostChangesOnDisconnect(t *testing.T) {
	s, tr, _ := newTestSession(t, "a", "b", "c")

	if remaining := s.Leave("a"); remaining != 2 {
		t.Fatalf("Expected 2 players left, got %d", remaining)
	}
	if !s.IsHost("b") {
		t.Error("Second joiner should become host")
	}

	update := tr.lastRoom(t, "c")
	if update.Index != 1 || !update.Players[0].Host || update.Players[0].ID != "b" {
		t.Errorf("Unexpected room update %+v", update)
	}

	color := update.Players[0].Color
	s.Leave("b")
	if s.colors.InUse(color) {
		t.Error("Color was not returned to the pool")
	}
	if s.Leave("nobody") != 1 {
		t.Error("Unknown leave should not change the roster")
	}
}

func TestNonHostDenied(t *testing.T) {
	requests := []struct {
		name string
		pkt  protocol.Packet
	}{
		{"start", packet(protocol.TypeStartRequest, nil)},
		{"config", packet(protocol.TypeConfigUpdateRequest, protocol.ConfigUpdateRequest{Config: map[string]any{"rows": 5}})},
		{"replay", packet(protocol.TypeReplayRequest, nil)},
		{"return to lobby", packet(protocol.TypeReturnToLobbyRequest, nil)},
	}

	for _, req := range requests {
		t.Run(req.name, func(t *testing.T) {
			s, tr, _ := newTestSession(t, "host", "guest")
			s.Handle("guest", req.pkt)

			msgs := tr.of("guest", protocol.TypeSystemMessage)
			if len(msgs) != 1 || msgs[0].(protocol.SystemMessage).Message != msgNotHost {
				t.Errorf("Expected a denial, got %v", tr.types("guest"))
			}
			if len(tr.types("host")) != 0 {
				t.Errorf("Host should receive nothing, got %v", tr.types("host"))
			}
			if s.status != StatusWaiting || s.instance != nil {
				t.Errorf("State changed: status %s", s.status)
			}
			if s.configs[config.CellMatch] != config.DefaultCellMatch() {
				t.Error("Config changed")
			}
		})
	}
}

func TestUnknownSenderIgnored(t *testing.T) {
	s, tr, _ := newTestSession(t, "host")
	s.Handle("ghost", packet(protocol.TypeStartRequest, nil))
	if s.status != StatusWaiting || len(tr.types("ghost")) != 0 || len(tr.types("host")) != 0 {
		t.Error("Packet from a stranger had an effect")
	}
}

func TestConfigNegotiation(t *testing.T) {
	s, tr, _ := newTestSession(t, "host", "guest")
	request := func(gameType string, cfg map[string]any) {
		s.Handle("host", packet(protocol.TypeConfigUpdateRequest, protocol.ConfigUpdateRequest{
			GameType: gameType,
			Config:   cfg,
		}))
	}

	request("", map[string]any{"rows": 5})
	updates := tr.of("guest", protocol.TypeConfigUpdate)
	if len(updates) != 1 {
		t.Fatalf("Expected one config update, got %d", len(updates))
	}
	if got := s.configs[config.CellMatch].(config.CellMatchConfig); got.Rows != 5 {
		t.Errorf("Expected rows 5, got %d", got.Rows)
	}

	t.Run("identical result is dropped", func(t *testing.T) {
		tr.reset()
		request("cellmatch", map[string]any{"rows": 5})
		request("cellmatch", map[string]any{"rows": "many"})
		if n := len(tr.of("guest", protocol.TypeConfigUpdate)); n != 0 {
			t.Errorf("Expected no broadcast, got %d", n)
		}
	})

	t.Run("invalid fields keep stored value", func(t *testing.T) {
		tr.reset()
		request("cellmatch", map[string]any{"rows": 99, "cols": 4})
		got := s.configs[config.CellMatch].(config.CellMatchConfig)
		if got.Rows != 5 || got.Cols != 4 {
			t.Errorf("Expected rows 5 cols 4, got %+v", got)
		}
	})

	t.Run("switching games keeps settings", func(t *testing.T) {
		tr.reset()
		request("minefield", nil)
		if s.gameType != config.Minefield {
			t.Fatalf("Expected minefield selected, got %s", s.gameType)
		}
		update := tr.of("guest", protocol.TypeConfigUpdate)[0].(protocol.ConfigUpdate)
		if update.GameType != "minefield" {
			t.Errorf("Unexpected update %+v", update)
		}

		request("cellmatch", nil)
		if got := s.configs[config.CellMatch].(config.CellMatchConfig); got.Rows != 5 || got.Cols != 4 {
			t.Errorf("CellMatch settings lost: %+v", got)
		}
	})

	t.Run("unknown game keeps selection", func(t *testing.T) {
		request("chess", map[string]any{"rows": 6})
		if s.gameType != config.CellMatch {
			t.Errorf("Expected cellmatch, got %s", s.gameType)
		}
	})

	t.Run("locked during a game", func(t *testing.T) {
		_ = s.StartGame()
		tr.reset()
		request("", map[string]any{"rows": 7})
		if msgs := tr.of("host", protocol.TypeSystemMessage); len(msgs) != 1 {
			t.Errorf("Expected a denial, got %v", tr.types("host"))
		}
	})
}

func TestStartGameFlow(t *testing.T) {
	s, tr, manual := newTestSession(t, "host", "guest")

	s.Handle("host", packet(protocol.TypeStartRequest, nil))
	if s.status != StatusPlaying {
		t.Fatalf("Expected playing, got %s", s.status)
	}
	types := tr.types("guest")
	if len(types) < 2 || types[0] != protocol.TypeSceneReady || types[1] != protocol.TypeSetField {
		t.Fatalf("Expected scene_ready before set_field, got %v", types)
	}
	if ready := tr.of("guest", protocol.TypeSceneReady)[0].(protocol.SceneReady); ready.GameType != "cellmatch" {
		t.Errorf("Unexpected scene_ready %+v", ready)
	}

	t.Run("second start is rejected", func(t *testing.T) {
		tr.reset()
		s.Handle("host", packet(protocol.TypeStartRequest, nil))
		msgs := tr.of("host", protocol.TypeSystemMessage)
		if len(msgs) != 1 || msgs[0].(protocol.SystemMessage).Message != msgGameInProgress {
			t.Errorf("Expected in-progress denial, got %v", tr.types("host"))
		}
	})

	t.Run("game packets reach the instance", func(t *testing.T) {
		tr.reset()
		s.Handle("host", packet(protocol.TypeDragArea, cellmatch.DragArea{Rect: cellmatch.Rect{Width: 1}}))
		if len(tr.of("guest", protocol.TypeDragArea)) != 1 || len(tr.of("host", protocol.TypeDragArea)) != 0 {
			t.Error("Drag preview was not relayed to the other player only")
		}
	})

	t.Run("natural end stops the game", func(t *testing.T) {
		tr.reset()
		manual.Advance(time.Duration(config.DefaultCellMatch().TimeLimit) * time.Second)
		if s.status != StatusEnded {
			t.Fatalf("Expected ended, got %s", s.status)
		}
		if len(tr.of("guest", protocol.TypeTimeEnd)) != 1 {
			t.Error("Expected time_end")
		}
		if tr.lastRoom(t, "guest").Status != string(StatusEnded) {
			t.Error("Room update should report ended")
		}
	})

	t.Run("replay starts a fresh round", func(t *testing.T) {
		tr.reset()
		s.Handle("host", packet(protocol.TypeReplayRequest, nil))
		if s.status != StatusPlaying {
			t.Fatalf("Expected playing, got %s", s.status)
		}
		if len(tr.of("guest", protocol.TypeSceneReady)) != 1 || len(tr.of("guest", protocol.TypeSetField)) != 1 {
			t.Errorf("Expected a new scene, got %v", tr.types("guest"))
		}
		if manual.Pending() != 1 {
			t.Errorf("Expected only the new countdown, got %d timers", manual.Pending())
		}
	})

	t.Run("return to lobby", func(t *testing.T) {
		tr.reset()
		s.Handle("host", packet(protocol.TypeReturnToLobbyRequest, nil))
		if s.status != StatusWaiting || s.instance != nil {
			t.Fatalf("Expected waiting without a game, got %s", s.status)
		}
		types := tr.types("guest")
		if len(types) != 2 || types[0] != protocol.TypeReturnToLobby || types[1] != protocol.TypeRoomUpdate {
			t.Errorf("Expected return_to_lobby then room_update, got %v", types)
		}
		if manual.Pending() != 0 {
			t.Errorf("Expected timers released, got %d", manual.Pending())
		}
	})
}

func TestLastPlayerLeavingStopsGame(t *testing.T) {
	s, _, manual := newTestSession(t, "a")
	_ = s.StartGame()
	if manual.Pending() == 0 {
		t.Fatal("Expected a running countdown")
	}

	if s.Leave("a") != 0 {
		t.Fatal("Expected an empty room")
	}
	if manual.Pending() != 0 {
		t.Errorf("Expected timers stopped, got %d", manual.Pending())
	}
	if s.status != StatusEnded {
		t.Errorf("Expected ended, got %s", s.status)
	}
}

func TestStartEachGame(t *testing.T) {
	for _, gt := range config.AllGameTypes() {
		t.Run(string(gt), func(t *testing.T) {
			s, tr, manual := newTestSession(t, "a", "b")
			s.Handle("a", packet(protocol.TypeConfigUpdateRequest, protocol.ConfigUpdateRequest{GameType: string(gt)}))
			if err := s.StartGame(); err != nil {
				t.Fatalf("StartGame failed: %v", err)
			}
			if len(tr.of("b", protocol.TypeSceneReady)) != 1 {
				t.Error("Expected scene_ready")
			}
			s.ReturnToLobby()
			if manual.Pending() != 0 {
				t.Errorf("Timers leaked: %d", manual.Pending())
			}
		})
	}
}

func TestInspect(t *testing.T) {
	s, _, _ := newTestSession(t, "a", "b")

	snap, err := s.Inspect(context.Background())
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if snap.ID != "room" || snap.Status != StatusWaiting || len(snap.Players) != 2 || snap.Capacity != 8 {
		t.Errorf("Unexpected snapshot %+v", snap)
	}

	t.Run("honours context", func(t *testing.T) {
		loop := clock.NewLoop(1, nil)
		stuck := New("stuck", newFakeTransport(), loop, Options{})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		go func() {
			<-ctx.Done()
			loop.Close()
		}()
		if _, err := stuck.Inspect(ctx); err == nil {
			t.Error("Expected a context error from a loop that never runs")
		}
	})
}

func TestNotice(t *testing.T) {
	s, tr, _ := newTestSession(t, "a", "b")
	s.Notice("server restarting")
	for _, id := range []string{"a", "b"} {
		msgs := tr.of(id, protocol.TypeSystemMessage)
		if len(msgs) != 1 || msgs[0].(protocol.SystemMessage).Message != "server restarting" {
			t.Errorf("%s: unexpected messages %v", id, msgs)
		}
	}
}
