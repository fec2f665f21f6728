package server

import "math/rand"

// BotGreedyProb bot 取"朝食物的最优安全方向"的概率，其余情况在安全方向里均匀随机。
// 刻意不做完美寻路，保留对局变数
const BotGreedyProb = 0.7

var allDirections = []Direction{
	{DX: GridSize, DY: 0},
	{DX: -GridSize, DY: 0},
	{DX: 0, DY: GridSize},
	{DX: 0, DY: -GridSize},
}

// botDirection 为 bot 蛇选择本帧方向：
// 枚举至多三个非掉头候选，过滤掉会撞身的，再按贪心+随机混合策略挑选。
// 一个安全方向都没有时保持原方向硬着头皮走（接受必死，不做挣扎特例）
func botDirection(s *Snake, id string, st *GameState) Direction {
	head := s.head()
	cur := s.direction()

	var safe []Direction
	for _, d := range allDirections {
		if d.isReverseOf(cur) {
			continue
		}
		next := wrapPoint(Point{X: head.X + d.DX, Y: head.Y + d.DY})
		if isSafeCell(next, id, st) {
			safe = append(safe, d)
		}
	}

	if len(safe) == 0 {
		return cur
	}

	if rand.Float64() < BotGreedyProb {
		best := safe[0]
		bestDist := int(^uint(0) >> 1)
		for _, d := range safe {
			next := wrapPoint(Point{X: head.X + d.DX, Y: head.Y + d.DY})
			if dist := manhattan(next, st.Food); dist < bestDist {
				bestDist = dist
				best = d
			}
		}
		return best
	}

	return safe[rand.Intn(len(safe))]
}

// isSafeCell 落点是否安全：不撞自己的身体（蛇尾除外），也不撞任何活蛇
func isSafeCell(p Point, selfID string, st *GameState) bool {
	for id, other := range st.Snakes {
		if !other.Alive {
			continue
		}
		body := other.Body
		if id == selfID && len(body) > 1 {
			body = body[:len(body)-1] // 自己的蛇尾即将腾出
		}
		for _, seg := range body {
			if seg == p {
				return false
			}
		}
	}
	return true
}
