package server

// 双向 JSON 协议：所有消息带 type 字段做封闭式分发，
// 未知 type 记日志后丢弃，连接保持打开

// ClientMessage 入站消息的统一载体（单结构承载所有字段，按 Type 取用）
type ClientMessage struct {
	Type    string `json:"type"`
	PIN     string `json:"pin,omitempty"`
	Name    string `json:"name,omitempty"`
	DX      int    `json:"dx,omitempty"`
	DY      int    `json:"dy,omitempty"`
	Message string `json:"message,omitempty"`
}

// 入站消息类型
const (
	MsgJoin        = "join"
	MsgSolo        = "solo"
	MsgMove        = "move"
	MsgReady       = "ready"
	MsgStartGame   = "startGame"
	MsgChat        = "chat"
	MsgGlobalChat  = "globalChat"
	MsgGameMessage = "gameMessage"
	MsgRestartGame = "restartGame"
)

// ChatMessage 房间/大厅聊天的一条记录
type ChatMessage struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// 出站消息：每种类型独立结构，避免可选字段误序列化

type joinedMessage struct {
	Type               string        `json:"type"`
	PlayerID           string        `json:"playerId"`
	GameState          *GameState    `json:"gameState"`
	PIN                string        `json:"pin"`
	PredefinedMessages []string      `json:"predefinedMessages"`
	ChatMessages       []ChatMessage `json:"chatMessages"`
}

type lobbyPlayer struct {
	Name  string `json:"name"`
	IsBot bool   `json:"isBot"`
	Ready bool   `json:"ready"`
}

type lobbyUpdateMessage struct {
	Type    string        `json:"type"`
	Players []lobbyPlayer `json:"players"`
	Status  string        `json:"status"`
}

type updateMessage struct {
	Type      string     `json:"type"`
	GameState *GameState `json:"gameState"`
}

type timeUpdateMessage struct {
	Type          string `json:"type"`
	TimeRemaining int    `json:"timeRemaining"`
}

type chatUpdateMessage struct {
	Type         string        `json:"type"`
	ChatMessages []ChatMessage `json:"chatMessages"`
}

type globalChatUpdateMessage struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// 出站消息类型
const (
	msgJoined           = "joined"
	msgLobbyUpdate      = "lobbyUpdate"
	msgUpdate           = "update"
	msgGameEnd          = "gameEnd"
	msgTimeUpdate       = "timeUpdate"
	msgChatUpdate       = "chatUpdate"
	msgGlobalChatUpdate = "globalChatUpdate"
	msgError            = "error"
)
