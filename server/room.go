package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRoomFull 房间满员，只回给发起 join 的客户端
var ErrRoomFull = errors.New("room is full")

// Transport 成员的下行通道抽象；bot 没有 Transport
type Transport interface {
	Enqueue(b []byte) bool
	EnqueueJSON(v any) bool
	Close()
}

// Member 房间成员：人类持有 Transport，bot 的 Conn 为 nil
type Member struct {
	ID    string
	Name  string
	IsBot bool
	Ready bool
	Conn  Transport
}

// elimination 一条死亡记录，用于终局排名（同 Tick 死亡的多蛇按长度排）
type elimination struct {
	name   string
	length int
	tick   int64
}

// Room 房间世界：权威状态维护在内存，成员/定时器/模拟循环都归它所有。
// 所有字段由 mu 串行保护；Tick 循环、倒计时与消息处理互不抢占
type Room struct {
	PIN string

	mu         sync.Mutex
	members    []*Member // 插入序即座次，0 号为房主
	state      *GameState
	isSoloMode bool
	tickSeq    int64
	eliminated []elimination
	chat       []ChatMessage

	// 两个可取消句柄；teardown 必须在所有退出路径上把它们都停掉
	countdownStop chan struct{}
	loopStop      chan struct{}

	metrics *RoomMetrics
}

// NewRoom 创建房间并生成初始食物
func NewRoom(pin string) *Room {
	r := &Room{
		PIN:     pin,
		state:   newGameState(),
		metrics: &RoomMetrics{},
	}
	r.state.spawnFood()
	return r
}

// Join 人类玩家入房；满员时返回 ErrRoomFull，不打扰其他成员。
// 首个人类进入非 solo 房间时启动开局倒计时并用 bot 补齐到最低可开局人数
func (r *Room) Join(name string, conn Transport) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) >= MaxPlayers {
		// 候补 bot 给真人让位，但只在大厅阶段；让不出位置才算真满
		if r.state.Status != StatusWaiting || !r.dropBot() {
			return "", ErrRoomFull
		}
	}

	m := r.addMember(name, false, conn)

	conn.EnqueueJSON(joinedMessage{
		Type:               msgJoined,
		PlayerID:           m.ID,
		GameState:          r.state,
		PIN:                r.PIN,
		PredefinedMessages: predefinedMessages,
		ChatMessages:       r.chatSnapshot(),
	})

	if r.humanCount() == 1 && !r.isSoloMode {
		r.startCountdown()
		for len(r.members) < MinPlayers+1 && len(r.members) < MaxPlayers {
			r.addBot()
		}
	}

	r.broadcastLobby()
	return m.ID, nil
}

// AddBots 追加 n 条 bot（solo 房间预填用），满员后停止
func (r *Room) AddBots(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n; i++ {
		if r.addBot() == nil {
			return
		}
	}
}

// MarkSolo 标记为 solo 房间：永久抑制开局倒计时
func (r *Room) MarkSolo() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.isSoloMode = true
}

// addMember 创建成员及其蛇；蛇 id 与成员 id 一致且房间生命周期内不复用
func (r *Room) addMember(name string, isBot bool, conn Transport) *Member {
	m := &Member{
		ID:    uuid.NewString(),
		Name:  name,
		IsBot: isBot,
		Ready: isBot, // bot 恒为 ready
		Conn:  conn,
	}
	r.members = append(r.members, m)
	r.state.Snakes[m.ID] = newSnake(name, isBot)
	return m
}

func (r *Room) addBot() *Member {
	if len(r.members) >= MaxPlayers {
		return nil
	}
	return r.addMember(fmt.Sprintf("Bot%d", len(r.members)+1), true, nil)
}

// dropBot 摘掉最后一条候补 bot 及其蛇，为真人腾座位
func (r *Room) dropBot() bool {
	for i := len(r.members) - 1; i >= 0; i-- {
		if r.members[i].IsBot {
			delete(r.state.Snakes, r.members[i].ID)
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) memberByConn(conn Transport) *Member {
	for _, m := range r.members {
		if m.Conn == conn {
			return m
		}
	}
	return nil
}

func (r *Room) humanCount() int {
	n := 0
	for _, m := range r.members {
		if !m.IsBot {
			n++
		}
	}
	return n
}

// HumanCount 供管理器清扫协程判断房间是否已无人类
func (r *Room) HumanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.humanCount()
}

// SetReady 标记成员 ready；全员 ready 时取消倒计时并直接开局
func (r *Room) SetReady(conn Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.memberByConn(conn)
	if m == nil {
		// 未知成员的 ready 属于常规竞态，静默忽略
		return
	}
	m.Ready = true
	r.broadcastLobby()

	for _, mm := range r.members {
		if !mm.Ready {
			return
		}
	}
	r.startPlaying()
}

// StartGame 房主强制开局；非房主或非 waiting 状态时静默忽略
func (r *Room) StartGame(conn Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) == 0 || r.members[0].Conn != conn {
		return
	}
	r.startPlaying()
}

// ForceStart 无视 ready 状态直接开局（倒计时归零、solo 宽限期到点时调用）
func (r *Room) ForceStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startPlaying()
}

// startPlaying waiting → playing 的唯一入口。
// 幂等：重复触发（倒计时二次回调等）不会再起一个模拟循环
func (r *Room) startPlaying() {
	if r.state.Status != StatusWaiting || r.loopStop != nil {
		return
	}
	for _, m := range r.members {
		m.Ready = true
	}
	r.state.Status = StatusPlaying
	r.stopCountdown()
	r.startLoop()
	r.broadcastLobby()
	Log.Infof("room %s: game started, %d members", r.PIN, len(r.members))
}

// Move 设置蛇的待定方向；反向与非法向量一律静默拒绝
func (r *Room) Move(conn Transport, dir Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.memberByConn(conn)
	if m == nil {
		return
	}
	s := r.state.Snakes[m.ID]
	if s == nil || !s.Alive {
		return
	}
	if !dir.isValid() || dir.isReverseOf(s.direction()) {
		r.metrics.IncMoveRejected()
		return
	}
	s.DX, s.DY = dir.DX, dir.DY
	r.metrics.IncMoveAccepted()
}

// SetBubble 给调用者的蛇挂气泡消息
func (r *Room) SetBubble(conn Transport, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.memberByConn(conn)
	if m == nil {
		return
	}
	s := r.state.Snakes[m.ID]
	if s == nil || !s.Alive {
		return
	}
	s.setBubble(text, time.Now())
}

// Restart 将 finished 房间重置回 waiting：清榜单与消息、重生所有蛇与食物，
// 非 solo 房间重新拉起倒计时
func (r *Room) Restart(conn Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.memberByConn(conn) == nil || r.state.Status != StatusFinished {
		return
	}

	r.state.Leaderboard = []LeaderboardEntry{}
	r.state.Messages = []string{}
	r.state.TemporaryMessages = []*Announcement{}
	r.eliminated = nil
	r.state.Status = StatusWaiting

	for _, m := range r.members {
		m.Ready = m.IsBot
		r.state.Snakes[m.ID] = newSnake(m.Name, m.IsBot)
	}
	r.state.spawnFood()

	if !r.isSoloMode {
		r.startCountdown()
	}
	r.broadcastLobby()
	Log.Infof("room %s: restarted", r.PIN)
}

// RemoveByConn 移除断线成员及其蛇；返回剩余成员数。
// 最后一个人类离开时取消倒计时；成员清零后的收尾由管理器负责
func (r *Room) RemoveByConn(conn Transport) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.members {
		if m.Conn == conn {
			r.members = append(r.members[:i], r.members[i+1:]...)
			delete(r.state.Snakes, m.ID)
			break
		}
	}
	if r.humanCount() == 0 {
		r.stopCountdown()
	}
	if len(r.members) > 0 {
		r.broadcastLobby()
	}
	return len(r.members)
}

// ScheduleForceStart 宽限期后强制开局（solo 房间等 join 消息落地用）
func (r *Room) ScheduleForceStart(delay time.Duration) {
	time.AfterFunc(delay, r.ForceStart)
}

// Teardown 单一收尾入口：停掉倒计时与模拟循环，所有退出路径都走这里
func (r *Room) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopCountdown()
	r.stopLoop()
}

// startCountdown 开局倒计时：每秒广播剩余秒数，归零且仍在 waiting 时强制开局
func (r *Room) startCountdown() {
	if r.countdownStop != nil || r.isSoloMode {
		return
	}
	stop := make(chan struct{})
	r.countdownStop = stop

	remaining := int(AutoStartTime / time.Second)
	r.broadcastJSON(timeUpdateMessage{Type: msgTimeUpdate, TimeRemaining: remaining})

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				remaining--
				r.mu.Lock()
				// 取消与回调的竞态：句柄已被换掉就什么都不做
				if r.countdownStop != stop {
					r.mu.Unlock()
					return
				}
				r.broadcastJSON(timeUpdateMessage{Type: msgTimeUpdate, TimeRemaining: remaining})
				if remaining <= 0 {
					r.startPlaying()
					r.mu.Unlock()
					return
				}
				r.mu.Unlock()
			}
		}
	}()
}

// stopCountdown 幂等取消；调用方持有 r.mu
func (r *Room) stopCountdown() {
	if r.countdownStop != nil {
		close(r.countdownStop)
		r.countdownStop = nil
	}
}

// startLoop 启动固定频率的模拟循环；调用方持有 r.mu
func (r *Room) startLoop() {
	if r.loopStop != nil {
		return
	}
	stop := make(chan struct{})
	r.loopStop = stop

	go func() {
		ticker := time.NewTicker(TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				start := time.Now()
				r.Tick(start)
				r.metrics.AddTick(time.Since(start).Nanoseconds())
			}
		}
	}()
}

// stopLoop 幂等取消；调用方持有 r.mu
func (r *Room) stopLoop() {
	if r.loopStop != nil {
		close(r.loopStop)
		r.loopStop = nil
	}
}

// broadcastLobby 推送成员/状态快照；调用方持有 r.mu
func (r *Room) broadcastLobby() {
	players := make([]lobbyPlayer, 0, len(r.members))
	for _, m := range r.members {
		players = append(players, lobbyPlayer{Name: m.Name, IsBot: m.IsBot, Ready: m.Ready})
	}
	r.broadcastJSON(lobbyUpdateMessage{Type: msgLobbyUpdate, Players: players, Status: r.state.Status})
}

// broadcastState 整包推送 GameState；msgType 区分 update 与 gameEnd
func (r *Room) broadcastState(msgType string) {
	r.broadcastJSON(updateMessage{Type: msgType, GameState: r.state})
}

// broadcastJSON 序列化一次、逐成员入队；不可发送的成员本帧静默跳过
func (r *Room) broadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		Log.Errorf("room %s: marshal broadcast: %v", r.PIN, err)
		return
	}
	for _, m := range r.members {
		if m.Conn == nil {
			continue
		}
		r.metrics.AddBroadcast(m.Conn.Enqueue(b))
	}
}

// Status 当前生命周期状态（调试端点用）
func (r *Room) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Status
}

// MemberCount 当前成员数（含 bot）
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// TickSeq 已推进的模拟帧数
func (r *Room) TickSeq() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tickSeq
}

// Metrics 指标句柄（计数器自身是原子的）
func (r *Room) Metrics() *RoomMetrics {
	return r.metrics
}
