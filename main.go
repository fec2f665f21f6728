package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"snakearena/server"
)

// SnakeArena 入口：启动 HTTP + WebSocket 服务，并初始化房间管理器
func main() {
	var addr, logFile string
	flag.StringVar(&addr, "addr", ":8080", "server listen address, e.g. :8080")
	flag.StringVar(&logFile, "log", "app.log", "log file path")
	flag.Parse()
	// 使用第三方 zap 日志库写入文件（带滚动）
	if err := server.InitLogger(logFile); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	// 管理器单例：首次获取即拉起周期清扫
	rm := server.GetRoomManager()
	defer rm.StopSweeper()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS)
	// 前后端分离：将 / 映射到 web 目录的静态资源
	mux.Handle("/", http.FileServer(http.Dir("web")))
	// 管理与监控接口
	mux.HandleFunc("/debug/rooms", server.HandleDebugRooms)
	mux.HandleFunc("/metrics", server.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		server.Log.Infof("SnakeArena listening on %s; open http://localhost%v/", addr, addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")
}
