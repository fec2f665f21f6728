package server

import (
	"encoding/json"
	"testing"
	"time"
)

func TestJoinBackfillsBotsAndAcks(t *testing.T) {
	r := NewRoom("1234")
	defer r.Teardown()
	fc := &fakeConn{}

	id, err := r.Join("Ada", fc)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if id == "" {
		t.Fatal("join must hand back a player id")
	}
	if n := r.MemberCount(); n != 3 {
		t.Fatalf("members = %d, want human + 2 bots", n)
	}
	bots := 0
	r.mu.Lock()
	for _, m := range r.members {
		if m.IsBot {
			bots++
			if !m.Ready {
				t.Fatal("bots must join ready")
			}
		}
	}
	r.mu.Unlock()
	if bots != 2 {
		t.Fatalf("bots = %d, want 2", bots)
	}
	if fc.countType(msgJoined) != 1 {
		t.Fatalf("want exactly one joined ack, got %v", fc.received())
	}
	if fc.countType(msgLobbyUpdate) == 0 {
		t.Fatal("join must broadcast a lobby snapshot")
	}
}

func TestJoinSpawnRespectsMargin(t *testing.T) {
	lo := SpawnMargin * GridSize
	hi := CanvasSize - (SpawnMargin+1)*GridSize
	for i := 0; i < 50; i++ {
		r := NewRoom("1234")
		id, err := r.Join("Ada", &fakeConn{})
		if err != nil {
			t.Fatalf("join: %v", err)
		}
		head := r.state.Snakes[id].head()
		if head.X < lo || head.X > hi || head.Y < lo || head.Y > hi {
			t.Fatalf("spawn %+v outside margin band [%d,%d]", head, lo, hi)
		}
		r.Teardown()
	}
}

func TestMoveRejectsReverse(t *testing.T) {
	r := NewRoom("1234")
	defer r.Teardown()
	fc := &fakeConn{}
	id, _ := r.Join("Ada", fc)
	s := r.state.Snakes[id]

	// 初始向右；精确反向必须被拒
	r.Move(fc, Direction{DX: -GridSize, DY: 0})
	if s.DX != GridSize || s.DY != 0 {
		t.Fatalf("reverse move must be ignored, dir = (%d,%d)", s.DX, s.DY)
	}

	// 垂直转向合法
	r.Move(fc, Direction{DX: 0, DY: GridSize})
	if s.DX != 0 || s.DY != GridSize {
		t.Fatalf("perpendicular move rejected, dir = (%d,%d)", s.DX, s.DY)
	}

	// 转向后新的反向同样被拒
	r.Move(fc, Direction{DX: 0, DY: -GridSize})
	if s.DX != 0 || s.DY != GridSize {
		t.Fatalf("reverse after turn must be ignored, dir = (%d,%d)", s.DX, s.DY)
	}

	// 畸形向量（对角、非步长）静默丢弃
	for _, bad := range []Direction{{GridSize, GridSize}, {3, 0}, {0, 0}, {2 * GridSize, 0}} {
		r.Move(fc, bad)
		if s.DX != 0 || s.DY != GridSize {
			t.Fatalf("malformed vector %+v must be ignored", bad)
		}
	}
}

func TestAllReadyStartsGameAndCancelsCountdown(t *testing.T) {
	r := NewRoom("1234")
	defer r.Teardown()
	c1, c2 := &fakeConn{}, &fakeConn{}
	if _, err := r.Join("Ada", c1); err != nil {
		t.Fatalf("join 1: %v", err)
	}
	if _, err := r.Join("Bo", c2); err != nil {
		t.Fatalf("join 2: %v", err)
	}

	r.SetReady(c1)
	if got := r.Status(); got != StatusWaiting {
		t.Fatalf("one ready human must not start the game, status = %s", got)
	}
	r.SetReady(c2)
	if got := r.Status(); got != StatusPlaying {
		t.Fatalf("all ready must start the game, status = %s", got)
	}
	r.mu.Lock()
	if r.countdownStop != nil {
		t.Fatal("countdown must be canceled when the game starts")
	}
	if r.loopStop == nil {
		t.Fatal("simulation loop must be running")
	}
	r.mu.Unlock()
}

func TestStartGameIsCreatorOnly(t *testing.T) {
	r := NewRoom("1234")
	defer r.Teardown()
	c1, c2 := &fakeConn{}, &fakeConn{}
	r.Join("Ada", c1)
	r.Join("Bo", c2)

	r.StartGame(c2)
	if got := r.Status(); got != StatusWaiting {
		t.Fatalf("non-creator start must be ignored, status = %s", got)
	}
	r.StartGame(c1)
	if got := r.Status(); got != StatusPlaying {
		t.Fatalf("creator start must work, status = %s", got)
	}
}

func TestForceStartIsIdempotent(t *testing.T) {
	r := NewRoom("1234")
	defer r.Teardown()
	r.Join("Ada", &fakeConn{})

	r.ForceStart()
	r.mu.Lock()
	first := r.loopStop
	r.mu.Unlock()
	if first == nil {
		t.Fatal("force start must spin up the loop")
	}

	// 模拟倒计时二次回调：不得再起第二个循环
	r.ForceStart()
	r.mu.Lock()
	second := r.loopStop
	r.mu.Unlock()
	if first != second {
		t.Fatal("double fire started a second simulation loop")
	}
}

func TestBotDisplacementAndRoomFull(t *testing.T) {
	r := NewRoom("1234")
	defer r.Teardown()
	conns := []*fakeConn{{}, {}, {}, {}}
	for i, c := range conns {
		if _, err := r.Join("H", c); err != nil {
			t.Fatalf("human %d should fit (bots vacate): %v", i+1, err)
		}
	}
	if n := r.MemberCount(); n != MaxPlayers {
		t.Fatalf("members = %d, want %d", n, MaxPlayers)
	}
	if r.HumanCount() != 4 {
		t.Fatalf("humans = %d, want 4 after bots vacated", r.HumanCount())
	}

	fifth := &fakeConn{}
	if _, err := r.Join("H5", fifth); err != ErrRoomFull {
		t.Fatalf("fifth join err = %v, want ErrRoomFull", err)
	}
	// 满员只影响发起者，老成员不能收到 error
	for i, c := range conns {
		if c.countType(msgError) != 0 {
			t.Fatalf("member %d received a stray error", i)
		}
	}
}

func TestRemoveLastHumanCancelsCountdown(t *testing.T) {
	r := NewRoom("1234")
	defer r.Teardown()
	fc := &fakeConn{}
	r.Join("Ada", fc)

	r.mu.Lock()
	if r.countdownStop == nil {
		t.Fatal("countdown must run after first human join")
	}
	r.mu.Unlock()

	remaining := r.RemoveByConn(fc)
	if remaining != 2 {
		t.Fatalf("remaining = %d, want the 2 bots", remaining)
	}
	r.mu.Lock()
	if r.countdownStop != nil {
		t.Fatal("countdown must stop when the last human leaves")
	}
	r.mu.Unlock()
}

func TestRestartResetsFinishedRoom(t *testing.T) {
	r := NewRoom("1234")
	defer r.Teardown()
	fc := &fakeConn{}
	id, _ := r.Join("Ada", fc)

	// 人为制造一局打完的残局
	r.mu.Lock()
	r.state.Status = StatusFinished
	r.state.Leaderboard = []LeaderboardEntry{{Name: "Ada", Score: 5, IsWinner: true}}
	r.state.Messages = []string{"Ada won the game!"}
	r.state.addAnnouncement("Ada won the game!", time.Now())
	r.eliminated = []elimination{{name: "Bot2", length: 1, tick: 7}}
	r.state.Snakes[id].Alive = false
	r.state.Snakes[id].Speed = MaxSpeed
	r.stopCountdown()
	r.mu.Unlock()

	r.Restart(fc)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Status != StatusWaiting {
		t.Fatalf("status = %s, want waiting", r.state.Status)
	}
	if len(r.state.Leaderboard) != 0 || len(r.state.Messages) != 0 || len(r.state.TemporaryMessages) != 0 {
		t.Fatal("restart must clear leaderboard and messages")
	}
	if r.eliminated != nil {
		t.Fatal("restart must clear the elimination order")
	}
	s := r.state.Snakes[id]
	if !s.Alive || len(s.Body) != 1 || s.Speed != PlayerStartSpeed {
		t.Fatalf("restart must respawn a fresh snake, got %+v", s)
	}
	for _, m := range r.members {
		if !m.IsBot && m.Ready {
			t.Fatal("humans must come back unready after restart")
		}
	}
	if r.countdownStop == nil {
		t.Fatal("restart must relaunch the auto-start countdown")
	}
}

func TestRestartSoloStaysSilent(t *testing.T) {
	r := NewRoom("5678")
	defer r.Teardown()
	r.MarkSolo()
	r.AddBots(3)
	fc := &fakeConn{}
	_, err := r.Join("Ada", fc)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if fc.countType(msgTimeUpdate) != 0 {
		t.Fatal("solo rooms must never emit timeUpdate")
	}

	r.mu.Lock()
	r.state.Status = StatusFinished
	r.mu.Unlock()
	r.Restart(fc)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countdownStop != nil {
		t.Fatal("solo restart must not start a countdown")
	}
}

func TestBubbleSetAndExpire(t *testing.T) {
	r := newTestRoom()
	r.state.Food = pt(2, 2)
	fc := &fakeConn{}
	s := addTestSnake(r, "a", "A", []Point{pt(10, 10)}, GridSize, 0, false)
	addTestSnake(r, "b", "B", []Point{pt(30, 30)}, GridSize, 0, false)
	r.mu.Lock()
	r.members[0].Conn = fc
	r.mu.Unlock()

	r.SetBubble(fc, "GG")
	if s.Bubble == nil || s.Bubble.Text != "GG" {
		t.Fatalf("bubble not set: %+v", s.Bubble)
	}

	r.Tick(time.Now().Add(BubbleTTL + time.Second))
	if s.Bubble != nil {
		t.Fatal("bubble must expire after its window")
	}
}

func TestChatScrollbackCapAndReplay(t *testing.T) {
	r := NewRoom("1234")
	defer r.Teardown()
	c1 := &fakeConn{}
	r.Join("Ada", c1)

	for i := 0; i < ChatScrollback+5; i++ {
		r.Chat(c1, "hello")
	}
	r.mu.Lock()
	if len(r.chat) != ChatScrollback {
		t.Fatalf("chat history = %d, want capped at %d", len(r.chat), ChatScrollback)
	}
	r.mu.Unlock()
	if c1.countType(msgChatUpdate) != ChatScrollback+5 {
		t.Fatalf("every chat line must broadcast an update, got %d", c1.countType(msgChatUpdate))
	}

	// 新成员入房要带到完整聊天历史
	c2 := &fakeConn{}
	r.Join("Bo", c2)
	raw := c2.lastOfType(msgJoined)
	if raw == nil {
		t.Fatal("missing joined ack")
	}
	var ack struct {
		ChatMessages []ChatMessage `json:"chatMessages"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	if len(ack.ChatMessages) != ChatScrollback {
		t.Fatalf("joined replay = %d messages, want %d", len(ack.ChatMessages), ChatScrollback)
	}
}
