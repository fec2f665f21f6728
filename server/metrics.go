package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount      int64 // 统计的 Tick 次数
	MovesAccepted  int64 // 被接受的转向输入数
	MovesRejected  int64 // 因反向/非法向量被拒绝的转向数
	BroadcastsSent int64 // 成功入队的广播条数
	BroadcastsDrop int64 // 因发送队列满被丢弃的广播条数
	FoodEaten      int64 // 本房间累计吃到的食物数
	TotalTickNs    int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncMoveAccepted() { atomic.AddInt64(&m.MovesAccepted, 1) }
func (m *RoomMetrics) IncMoveRejected() { atomic.AddInt64(&m.MovesRejected, 1) }
func (m *RoomMetrics) IncFoodEaten()    { atomic.AddInt64(&m.FoodEaten, 1) }
func (m *RoomMetrics) AddBroadcast(sent bool) {
	if sent {
		atomic.AddInt64(&m.BroadcastsSent, 1)
	} else {
		atomic.AddInt64(&m.BroadcastsDrop, 1)
	}
}
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":      tick,
		"moves_accepted":  atomic.LoadInt64(&m.MovesAccepted),
		"moves_rejected":  atomic.LoadInt64(&m.MovesRejected),
		"broadcasts_sent": atomic.LoadInt64(&m.BroadcastsSent),
		"broadcasts_drop": atomic.LoadInt64(&m.BroadcastsDrop),
		"food_eaten":      atomic.LoadInt64(&m.FoodEaten),
		"avg_tick_ms":     avgMs,
	}
}
