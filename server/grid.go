package server

import "math/rand"

// Point 网格对齐的像素坐标（GridSize 的整数倍）
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// wrapCoord 单轴环面回绕：越过一侧边界后从另一侧重新进入
func wrapCoord(v int) int {
	if v < 0 {
		return CanvasSize - GridSize
	}
	if v >= CanvasSize {
		return 0
	}
	return v
}

// wrapPoint 对两个轴独立应用回绕
func wrapPoint(p Point) Point {
	return Point{X: wrapCoord(p.X), Y: wrapCoord(p.Y)}
}

// manhattan 曼哈顿距离（不考虑回绕捷径，与参考行为保持一致）
func manhattan(a, b Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// randomSafeCell 在距离每条边至少 margin 格的区域内均匀采样一个格点
func randomSafeCell(margin int) Point {
	min := margin
	max := GridCells - margin - 1
	span := max - min + 1
	return Point{
		X: (rand.Intn(span) + min) * GridSize,
		Y: (rand.Intn(span) + min) * GridSize,
	}
}

// findFreeCell 为食物寻找不与 occupied 重叠的格点；
// 超过 maxAttempts 次后退化为不检查的随机点，避免蛇身铺满棋盘时的活锁
func findFreeCell(occupied map[Point]bool, maxAttempts int) Point {
	for i := 0; i < maxAttempts; i++ {
		p := randomSafeCell(FoodMargin)
		if !occupied[p] {
			return p
		}
	}
	return randomSafeCell(FoodMargin)
}
