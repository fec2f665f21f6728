package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ClientConn 负责发送（写）数据到客户端的轻量包装。
// 广播协程与读泵的关闭路径并发触碰 send，用 closed 标记挡住向已关通道的写入
type ClientConn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, 64),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃，绝不拖慢 Tick）
func (c *ClientConn) Enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// EnqueueJSON 序列化后入队；序列化失败只记日志
func (c *ClientConn) EnqueueJSON(v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		Log.Errorf("marshal outbound message: %v", err)
		return false
	}
	return c.Enqueue(b)
}

// Close 关闭底层连接与发送队列；幂等
func (c *ClientConn) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.ws.Close()
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump 读取客户端消息并分发到房间管理器；
// 读泵退出即视为断线，交由管理器清理会话
func (c *ClientConn) readPump(rm *RoomManager) {
	defer c.ws.Close()
	defer rm.Disconnect(c)
	c.ws.SetReadLimit(1 << 16) // 协议消息都很小
	c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error { c.ws.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			// 协议错误：记日志后丢弃，连接保持打开
			Log.Warnf("drop malformed message: %v", err)
			continue
		}
		rm.Dispatch(c, &msg)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入；入房前的连接也能收发大厅全局聊天
func HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	rm := GetRoomManager()
	client := NewClientConn(ws)
	rm.Register(client)

	go client.writePump()
	go client.readPump(rm)
}
