package server

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Tick 推进一帧模拟。加锁串行，消息处理与定时器绝不与它并发改同一房间
func (r *Room) Tick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state
	if st.Status != StatusPlaying {
		return
	}
	r.tickSeq++

	// 1. 过期清理：公告环与蛇头气泡
	st.expireAnnouncements(now)
	for _, s := range st.Snakes {
		s.expireBubble(now)
	}

	// 2. 开局即残局（对手全掉线等）直接终局，不再推进移动
	if st.aliveCount() <= 1 {
		r.endRound(now)
		return
	}

	// 同时移动语义：跨蛇碰撞一律对着 Tick 开始前的身体快照判定，
	// 本帧先死的蛇不再作为碰撞来源，但其快照仍是有效碰撞目标
	preBodies := make(map[string][]Point, len(st.Snakes))
	for id, s := range st.Snakes {
		if s.Alive {
			preBodies[id] = append([]Point(nil), s.Body...)
		}
	}

	// 固定迭代序，避免 map 乱序引入的不确定性
	ids := make([]string, 0, len(st.Snakes))
	for id := range st.Snakes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := st.Snakes[id]
		if s == nil || !s.Alive {
			continue
		}

		if s.IsBot {
			d := botDirection(s, id, st)
			s.DX, s.DY = d.DX, d.DY
		}

		// 存活加速：每满一个周期乘性提速一次
		s.SurvivalTime += TickInterval.Seconds()
		if s.SurvivalTime >= SurvivalRampInterval {
			s.Speed = math.Min(s.Speed*SurvivalRampFactor, MaxSpeed)
			s.SurvivalTime = 0
		}

		// 移动冷却：速度越快冷却越短，一帧最多走一格
		s.MoveCooldown -= CooldownStep
		if s.MoveCooldown > 0 {
			continue
		}

		head := wrapPoint(Point{X: s.head().X + s.DX, Y: s.head().Y + s.DY})
		eating := head == st.Food

		if r.hitsSelf(s, head, eating) {
			r.kill(s, fmt.Sprintf("%s bit itself!", s.Name), now)
			continue
		}
		if victim := r.hitsOther(id, head, preBodies); victim != "" {
			r.kill(s, fmt.Sprintf("%s crashed into %s!", s.Name, victim), now)
			continue
		}

		s.Body = append([]Point{head}, s.Body...)
		if eating {
			s.Speed = math.Min(s.Speed*EatSpeedFactor, MaxSpeed)
			st.spawnFood()
			r.metrics.IncFoodEaten()
		} else {
			s.Body = s.Body[:len(s.Body)-1]
		}
		s.MoveCooldown = 1 / s.Speed
	}

	// 4. 本帧移动后再查一次残局
	if st.aliveCount() <= 1 {
		r.endRound(now)
		return
	}

	// 5. 整包广播
	r.broadcastState(msgUpdate)
}

// hitsSelf 自撞判定：命中自己身体即死，即将腾出的蛇尾（非进食帧）除外
func (r *Room) hitsSelf(s *Snake, head Point, eating bool) bool {
	last := len(s.Body)
	if !eating {
		last-- // 蛇尾本帧腾出
	}
	for i := 1; i < last; i++ {
		if s.Body[i] == head {
			return true
		}
	}
	return false
}

// hitsOther 跨蛇碰撞判定：对快照中所有其他蛇的整条身体检查，命中返回对方名字
func (r *Room) hitsOther(id string, head Point, preBodies map[string][]Point) string {
	for otherID, body := range preBodies {
		if otherID == id {
			continue
		}
		for _, seg := range body {
			if seg == head {
				if other := r.state.Snakes[otherID]; other != nil {
					return other.Name
				}
				return "another snake"
			}
		}
	}
	return ""
}

// kill 标记死亡、记叙事事件、登记淘汰序；尸体保留到回合结束
func (r *Room) kill(s *Snake, event string, now time.Time) {
	s.Alive = false
	r.state.addEvent(event, now)
	r.eliminated = append(r.eliminated, elimination{
		name:   s.Name,
		length: len(s.Body),
		tick:   r.tickSeq,
	})
	Log.Debugf("room %s: %s", r.PIN, event)
}

// endRound 终局：结算榜单、广播 gameEnd、停掉模拟循环。status 进入 finished，
// 直到显式 restart 才会回到 waiting
func (r *Room) endRound(now time.Time) {
	st := r.state
	st.Status = StatusFinished

	var board []LeaderboardEntry

	// 唯一幸存者置顶；双双同帧死亡时没有 winner 条目
	var survivor *Snake
	for _, s := range st.Snakes {
		if s.Alive {
			survivor = s
			break
		}
	}
	if survivor != nil && st.aliveCount() == 1 {
		board = append(board, LeaderboardEntry{
			Name:     survivor.Name,
			Score:    len(survivor.Body),
			IsWinner: true,
		})
		st.addEvent(fmt.Sprintf("%s won the game!", survivor.Name), now)
	}

	// 死亡名单按淘汰逆序排（死得越晚名次越高），同帧死亡按长度降序
	ranked := append([]elimination(nil), r.eliminated...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].tick != ranked[j].tick {
			return ranked[i].tick > ranked[j].tick
		}
		return ranked[i].length > ranked[j].length
	})
	for _, e := range ranked {
		board = append(board, LeaderboardEntry{Name: e.name, Score: e.length})
	}

	if len(board) > LeaderboardSize {
		board = board[:LeaderboardSize]
	}
	st.Leaderboard = board

	r.broadcastState(msgGameEnd)
	r.stopLoop()
	Log.Infof("room %s: round over, %d ranked", r.PIN, len(board))
}
