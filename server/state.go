package server

import "time"

// 房间生命周期状态
const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// Announcement 画面内的临时公告（击杀播报等），到期自动消失
type Announcement struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// LeaderboardEntry 终局榜单条目；Score 为死亡/终局时的蛇身长度
type LeaderboardEntry struct {
	Name     string `json:"name"`
	Score    int    `json:"score"`
	IsWinner bool   `json:"isWinner"`
}

// GameState 广播给客户端的完整状态快照。
// 只含纯数据，保证可整体 JSON 序列化（无连接句柄、无环引用）
type GameState struct {
	Snakes            map[string]*Snake  `json:"snakes"`
	Food              Point              `json:"food"`
	Status            string             `json:"status"`
	Leaderboard       []LeaderboardEntry `json:"leaderboard"`
	Messages          []string           `json:"messages"`
	TemporaryMessages []*Announcement    `json:"temporaryMessages"`
}

func newGameState() *GameState {
	return &GameState{
		Snakes:            make(map[string]*Snake),
		Status:            StatusWaiting,
		Leaderboard:       []LeaderboardEntry{},
		Messages:          []string{},
		TemporaryMessages: []*Announcement{},
	}
}

// addAnnouncement 追加临时公告，超出上限时淘汰最旧一条
func (gs *GameState) addAnnouncement(text string, now time.Time) {
	gs.TemporaryMessages = append(gs.TemporaryMessages, &Announcement{
		Text:      text,
		Timestamp: now.UnixMilli(),
	})
	if len(gs.TemporaryMessages) > MaxAnnouncements {
		gs.TemporaryMessages = gs.TemporaryMessages[len(gs.TemporaryMessages)-MaxAnnouncements:]
	}
}

// expireAnnouncements 清除超时公告
func (gs *GameState) expireAnnouncements(now time.Time) {
	kept := gs.TemporaryMessages[:0]
	for _, a := range gs.TemporaryMessages {
		if now.UnixMilli()-a.Timestamp < AnnouncementTTL.Milliseconds() {
			kept = append(kept, a)
		}
	}
	gs.TemporaryMessages = kept
}

// addEvent 追加叙事事件行（死亡播报、胜利宣言），同时进入公告环
func (gs *GameState) addEvent(text string, now time.Time) {
	gs.Messages = append(gs.Messages, text)
	gs.addAnnouncement(text, now)
}

// aliveCount 当前存活蛇数
func (gs *GameState) aliveCount() int {
	n := 0
	for _, s := range gs.Snakes {
		if s.Alive {
			n++
		}
	}
	return n
}

// occupiedCells 所有存活蛇身占据的格点集合，供食物落点检查
func (gs *GameState) occupiedCells() map[Point]bool {
	occ := make(map[Point]bool)
	for _, s := range gs.Snakes {
		if !s.Alive {
			continue
		}
		for _, seg := range s.Body {
			occ[seg] = true
		}
	}
	return occ
}

// spawnFood 重新生成食物，尽力避开蛇身
func (gs *GameState) spawnFood() {
	gs.Food = findFreeCell(gs.occupiedCells(), FoodMaxAttempts)
}
