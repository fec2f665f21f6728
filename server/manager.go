package server

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
)

// session 一条连接的入房状态；未入房时 room 为 nil
type session struct {
	room     *Room
	playerID string
}

// RoomManager 持有 PIN→Room 注册表与连接会话表。
// 注册表是唯一被多个入口（join/solo/断线/清扫）共享的结构，统一由 mu 串行
type RoomManager struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	sessions map[Transport]*session

	sweepStop chan struct{}
}

var (
	defaultManager *RoomManager
	once           sync.Once
)

// GetRoomManager 单例房间管理器（进程内唯一）
func GetRoomManager() *RoomManager {
	once.Do(func() {
		defaultManager = NewRoomManager()
		defaultManager.StartSweeper()
	})
	return defaultManager
}

// NewRoomManager 供测试注入独立实例
func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:    make(map[string]*Room),
		sessions: make(map[Transport]*session),
	}
}

// Register 登记新连接；入房前也能参与大厅全局聊天
func (m *RoomManager) Register(conn Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[conn] = &session{}
}

// Dispatch 封闭式消息分发；未知类型记日志后忽略，连接保持打开
func (m *RoomManager) Dispatch(conn Transport, msg *ClientMessage) {
	switch msg.Type {
	case MsgJoin:
		m.HandleJoin(conn, msg.PIN, msg.Name)
	case MsgSolo:
		m.HandleSolo(conn, msg.Name)
	case MsgMove:
		m.HandleMove(conn, Direction{DX: msg.DX, DY: msg.DY})
	case MsgReady:
		m.HandleReady(conn)
	case MsgStartGame:
		m.HandleStartGame(conn)
	case MsgChat:
		m.HandleChat(conn, msg.Message)
	case MsgGlobalChat:
		m.HandleGlobalChat(conn, msg.Name, msg.Message)
	case MsgGameMessage:
		m.HandleGameMessage(conn, msg.Message)
	case MsgRestartGame:
		m.HandleRestart(conn)
	default:
		Log.Warnf("unknown message type %q, ignoring", msg.Type)
	}
}

// CreateRoom 幂等建房：PIN 已存在时原样返回旧房间
func (m *RoomManager) CreateRoom(pin string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createRoomLocked(pin)
}

func (m *RoomManager) createRoomLocked(pin string) *Room {
	if r, ok := m.rooms[pin]; ok {
		return r
	}
	r := NewRoom(pin)
	m.rooms[pin] = r
	Log.Infof("room %s created", pin)
	return r
}

// HandleJoin 入房/建房一体：PIN 不存在则建。满员只错给发起者
func (m *RoomManager) HandleJoin(conn Transport, pin, name string) {
	if !validPIN(pin) {
		conn.EnqueueJSON(errorMessage{Type: msgError, Message: "Invalid room PIN"})
		return
	}
	name = sanitizeName(name)

	m.mu.Lock()
	sess := m.sessions[conn]
	if sess == nil || sess.room != nil {
		// 重复 join 属于常规竞态，静默忽略
		m.mu.Unlock()
		return
	}
	room := m.createRoomLocked(pin)

	id, err := room.Join(name, conn)
	if err != nil {
		m.mu.Unlock()
		conn.EnqueueJSON(errorMessage{Type: msgError, Message: "Room is full"})
		return
	}
	sess.room, sess.playerID = room, id
	m.mu.Unlock()
	Log.Infof("player %s joined room %s as %s", name, pin, id)
}

// HandleSolo 私人 bot 房：生成 PIN、预填 bot、入房，宽限期后强制开局。
// solo 标记永久抑制倒计时，全程不会有 timeUpdate
func (m *RoomManager) HandleSolo(conn Transport, name string) {
	name = sanitizeName(name)

	m.mu.Lock()
	sess := m.sessions[conn]
	if sess == nil || sess.room != nil {
		m.mu.Unlock()
		return
	}
	pin := m.generatePINLocked()
	room := m.createRoomLocked(pin)
	room.MarkSolo()
	room.AddBots(3)

	id, err := room.Join(name, conn)
	if err != nil {
		m.mu.Unlock()
		conn.EnqueueJSON(errorMessage{Type: msgError, Message: "Room is full"})
		return
	}
	sess.room, sess.playerID = room, id
	m.mu.Unlock()

	// 等 joined 消息在客户端落地再开打
	room.ScheduleForceStart(SoloStartDelay)
	Log.Infof("player %s started solo room %s", name, pin)
}

// HandleMove 转发转向意图
func (m *RoomManager) HandleMove(conn Transport, dir Direction) {
	if room := m.roomOf(conn); room != nil {
		room.Move(conn, dir)
	}
}

func (m *RoomManager) HandleReady(conn Transport) {
	if room := m.roomOf(conn); room != nil {
		room.SetReady(conn)
	}
}

func (m *RoomManager) HandleStartGame(conn Transport) {
	if room := m.roomOf(conn); room != nil {
		room.StartGame(conn)
	}
}

func (m *RoomManager) HandleGameMessage(conn Transport, text string) {
	text = sanitizeChat(text)
	if text == "" {
		return
	}
	if room := m.roomOf(conn); room != nil {
		room.SetBubble(conn, text)
	}
}

func (m *RoomManager) HandleRestart(conn Transport) {
	if room := m.roomOf(conn); room != nil {
		room.Restart(conn)
	}
}

// Disconnect 连接终结的唯一入口：退房、必要时拆房、注销会话
func (m *RoomManager) Disconnect(conn Transport) {
	m.mu.Lock()
	sess := m.sessions[conn]
	delete(m.sessions, conn)

	var room *Room
	if sess != nil {
		room = sess.room
	}
	if room != nil {
		if remaining := room.RemoveByConn(conn); remaining == 0 {
			room.Teardown()
			delete(m.rooms, room.PIN)
			Log.Infof("room %s deleted (empty)", room.PIN)
		}
	}
	m.mu.Unlock()

	conn.Close()
}

// StartSweeper 周期清扫：兜底回收因网络异常没走到干净 close 的房间
func (m *RoomManager) StartSweeper() {
	m.mu.Lock()
	if m.sweepStop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.sweepStop = stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.sweepOnce()
			}
		}
	}()
}

// StopSweeper 停掉清扫协程（测试与优雅退出用）
func (m *RoomManager) StopSweeper() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sweepStop != nil {
		close(m.sweepStop)
		m.sweepStop = nil
	}
}

// sweepOnce 删掉所有已无人类连接的房间（纯 bot 房也一并回收）
func (m *RoomManager) sweepOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pin, room := range m.rooms {
		if room.HumanCount() == 0 {
			room.Teardown()
			delete(m.rooms, pin)
			Log.Infof("room %s swept (no humans left)", pin)
		}
	}
}

// RoomInfo 调试端点的单房间摘要
type RoomInfo struct {
	PIN     string `json:"pin"`
	Members int    `json:"members"`
	Humans  int    `json:"humans"`
	Status  string `json:"status"`
	Ticks   int64  `json:"ticks"`
}

// RoomsSnapshot 按 PIN 排序的活动房间清单
func (m *RoomManager) RoomsSnapshot() []RoomInfo {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, RoomInfo{
			PIN:     r.PIN,
			Members: r.MemberCount(),
			Humans:  r.HumanCount(),
			Status:  r.Status(),
			Ticks:   r.TickSeq(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].PIN < infos[j].PIN })
	return infos
}

// Room 按 PIN 查房（/metrics 用）；不存在返回 nil
func (m *RoomManager) Room(pin string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[pin]
}

// roomOf 会话查房；未入房返回 nil（上层静默忽略）
func (m *RoomManager) roomOf(conn Transport) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess := m.sessions[conn]; sess != nil {
		return sess.room
	}
	return nil
}

// generatePINLocked 生成未占用的 4 位数字 PIN；调用方持有 m.mu
func (m *RoomManager) generatePINLocked() string {
	for {
		pin := fmt.Sprintf("%04d", 1000+rand.Intn(9000))
		if _, ok := m.rooms[pin]; !ok {
			return pin
		}
	}
}

// validPIN 4 位数字
func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// sanitizeName 去首尾空白，空名兜底
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Player"
	}
	if len(name) > 24 {
		name = name[:24]
	}
	return name
}

// sanitizeChat 聊天/气泡内容修剪与截断
func sanitizeChat(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > MaxChatLen {
		text = text[:MaxChatLen]
	}
	return text
}
