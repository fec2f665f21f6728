package server

import "time"

// 服务端权威配置：所有几何与节奏常量固定在服务端，
// 客户端上报的画布/格子尺寸仅供渲染参考，绝不参与碰撞计算
const (
	// GridSize 单个格子的像素边长；蛇身与食物坐标均为其整数倍
	GridSize = 20
	// CanvasSize 画布边长（正方形），必须能被 GridSize 整除
	CanvasSize = 800
	// GridCells 每个轴上的格子数
	GridCells = CanvasSize / GridSize

	// MaxPlayers 单房间人数上限（含 bot）
	MaxPlayers = 4
	// MinPlayers 开局所需最低人数，不足时用 bot 补齐
	MinPlayers = 2

	// SpawnMargin 出生点距离边缘的最小格子数
	SpawnMargin = 5
	// FoodMargin 食物距离边缘的最小格子数
	FoodMargin = 2
	// FoodMaxAttempts 食物落点重采样上限，超过后放弃重叠检查（宁可偶发重叠也不死循环）
	FoodMaxAttempts = 100
)

const (
	// TickInterval 模拟推进周期（10 TPS）
	TickInterval = 100 * time.Millisecond
	// AutoStartTime 开局倒计时总时长
	AutoStartTime = 10 * time.Second
	// SoloStartDelay solo 房间等待 join 消息落地后的强制开局延迟
	SoloStartDelay = 500 * time.Millisecond
	// SweepInterval 无人房间的周期清扫间隔
	SweepInterval = time.Minute
)

const (
	// PlayerStartSpeed / BotStartSpeed 初始速度（格/秒相对值，决定移动冷却）
	PlayerStartSpeed = 3.0
	BotStartSpeed    = 2.2
	// MaxSpeed 速度硬上限
	MaxSpeed = 8.0
	// SurvivalRampInterval 存活多久触发一次被动加速
	SurvivalRampInterval = 30.0 // 秒
	// SurvivalRampFactor / EatSpeedFactor 两种加速的倍率
	SurvivalRampFactor = 1.02
	EatSpeedFactor     = 1.05
	// CooldownStep 每 Tick 冷却递减量
	CooldownStep = 0.1
)

const (
	// AnnouncementTTL 画面内临时公告的存活时长
	AnnouncementTTL = 5 * time.Second
	// MaxAnnouncements 临时公告环形上限
	MaxAnnouncements = 5
	// BubbleTTL 蛇头气泡消息的存活时长
	BubbleTTL = 4 * time.Second
	// ChatScrollback 房间聊天保留的历史条数
	ChatScrollback = 50
	// MaxChatLen 单条聊天/气泡消息长度上限
	MaxChatLen = 120
	// LeaderboardSize 终局榜单保留名次
	LeaderboardSize = 3
)

// snakeColors 分配给新蛇的调色板，随机取用
var snakeColors = []string{
	"#FF5555", "#55FF55", "#5555FF", "#FFFF55",
	"#FF55FF", "#55FFFF", "#FFAA00", "#AA00FF",
}

// predefinedMessages 游戏内快捷喊话，入房时随 joined 下发
var predefinedMessages = []string{
	"Good luck!",
	"Nice move!",
	"Watch out!",
	"Too slow!",
	"That was close...",
	"GG",
}
