package server

import (
	"math/rand"
	"time"
)

// Direction 方向向量：dx/dy 各取 {-GridSize, 0, +GridSize} 且恰有一轴非零
type Direction struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// isValidDirection 校验客户端输入是否为合法的单轴一步
func (d Direction) isValid() bool {
	if d.DX != 0 && d.DY != 0 {
		return false
	}
	return abs(d.DX)+abs(d.DY) == GridSize
}

// isReverseOf 是否为 other 的精确反向（蛇不允许原地掉头）
func (d Direction) isReverseOf(other Direction) bool {
	return (d.DX != 0 && d.DX == -other.DX) || (d.DY != 0 && d.DY == -other.DY)
}

// Bubble 蛇头上的临时气泡消息，超时后在 Tick 中被清除
type Bubble struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Snake 服务端权威蛇实体；Body[0] 恒为蛇头，段坐标保持网格对齐且连续
type Snake struct {
	Body         []Point `json:"body"`
	DX           int     `json:"dx"`
	DY           int     `json:"dy"`
	Alive        bool    `json:"alive"`
	Name         string  `json:"name"`
	Speed        float64 `json:"speed"`
	MoveCooldown float64 `json:"moveCooldown"`
	IsBot        bool    `json:"isBot"`
	SurvivalTime float64 `json:"survivalTime"`
	Color        string  `json:"color"`
	Bubble       *Bubble `json:"message,omitempty"`
}

// newSnake 在安全边距内随机落点生成单段蛇，初始向右移动
func newSnake(name string, isBot bool) *Snake {
	speed := PlayerStartSpeed
	if isBot {
		// bot 稍慢一点，降低自杀率
		speed = BotStartSpeed
	}
	return &Snake{
		Body:  []Point{randomSafeCell(SpawnMargin)},
		DX:    GridSize,
		DY:    0,
		Alive: true,
		Name:  name,
		Speed: speed,
		IsBot: isBot,
		Color: snakeColors[rand.Intn(len(snakeColors))],
	}
}

// head 蛇头坐标；蛇体至少一段，调用方无需判空
func (s *Snake) head() Point {
	return s.Body[0]
}

// direction 当前行进方向
func (s *Snake) direction() Direction {
	return Direction{DX: s.DX, DY: s.DY}
}

// setBubble 挂上一条气泡消息，覆盖旧气泡
func (s *Snake) setBubble(text string, now time.Time) {
	s.Bubble = &Bubble{Text: text, Timestamp: now.UnixMilli()}
}

// expireBubble 气泡超时即摘除
func (s *Snake) expireBubble(now time.Time) {
	if s.Bubble != nil && now.UnixMilli()-s.Bubble.Timestamp > BubbleTTL.Milliseconds() {
		s.Bubble = nil
	}
}
