package server

import (
	"encoding/json"
	"net/http"
)

// HandleDebugRooms 运维可见性：枚举活动房间
// GET /debug/rooms  → [{pin, members, humans, status, ticks}, ...]
func HandleDebugRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rm := GetRoomManager()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rm.RoomsSnapshot())
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=1234
func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("room")
	rm := GetRoomManager()
	room := rm.Room(pin)
	if room == nil {
		http.Error(w, "no such room", http.StatusNotFound)
		return
	}
	payload := map[string]any{
		"room":    pin,
		"tick":    room.TickSeq(),
		"metrics": room.Metrics().Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
