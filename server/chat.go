package server

import (
	"encoding/json"
	"time"
)

// 两级聊天：房间内聊天带滚动历史（入房时整段回放），
// 大厅全局聊天只做逐条扇出，不留历史

// HandleChat 房间聊天；未入房静默忽略
func (m *RoomManager) HandleChat(conn Transport, text string) {
	text = sanitizeChat(text)
	if text == "" {
		return
	}
	if room := m.roomOf(conn); room != nil {
		room.Chat(conn, text)
	}
}

// HandleGlobalChat 大厅聊天：扇出到所有在线连接（含未入房的菜单页）
func (m *RoomManager) HandleGlobalChat(conn Transport, name, text string) {
	text = sanitizeChat(text)
	if text == "" {
		return
	}
	msg := globalChatUpdateMessage{
		Type: msgGlobalChatUpdate,
		Message: ChatMessage{
			Name:      sanitizeName(name),
			Message:   text,
			Timestamp: time.Now().UnixMilli(),
		},
	}
	b, err := json.Marshal(msg)
	if err != nil {
		Log.Errorf("marshal global chat: %v", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := range m.sessions {
		c.Enqueue(b)
	}
}

// Chat 追加一条房间聊天并广播全量历史
func (r *Room) Chat(conn Transport, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.memberByConn(conn)
	if m == nil {
		return
	}
	r.chat = append(r.chat, ChatMessage{
		Name:      m.Name,
		Message:   text,
		Timestamp: time.Now().UnixMilli(),
	})
	if len(r.chat) > ChatScrollback {
		r.chat = r.chat[len(r.chat)-ChatScrollback:]
	}
	r.broadcastJSON(chatUpdateMessage{Type: msgChatUpdate, ChatMessages: r.chatSnapshot()})
}

// chatSnapshot 聊天历史副本；调用方持有 r.mu
func (r *Room) chatSnapshot() []ChatMessage {
	out := make([]ChatMessage, len(r.chat))
	copy(out, r.chat)
	return out
}
