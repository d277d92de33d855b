package model

import "encoding/json"

// 事件类型
const (
	EventMove   = "move"
	EventClick  = "click"
	EventScroll = "scroll"
)

// 鼠标按键
const (
	ButtonLeft   = "left"
	ButtonRight  = "right"
	ButtonMiddle = "middle"
)

// Event 表示单个录制的鼠标事件
type Event struct {
	Type      string  `json:"type"`      // 事件类型: "move", "click", "scroll"
	X         int     `json:"x"`         // 鼠标 X 坐标（屏幕绝对坐标）
	Y         int     `json:"y"`         // 鼠标 Y 坐标（屏幕绝对坐标）
	Button    string  `json:"button"`    // 鼠标按键: "left", "right", "middle"（仅 click）
	Pressed   bool    `json:"pressed"`   // 按下 / 释放（仅 click）
	DX        int     `json:"dx"`        // 水平滚动增量（仅 scroll）
	DY        int     `json:"dy"`        // 垂直滚动增量（仅 scroll）
	Timestamp float64 `json:"timestamp"` // 距录制开始的秒数，单调不减
}

// MarshalJSON 按事件类型只输出该类型的字段，保持录制文件格式不变
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventClick:
		return json.Marshal(struct {
			Type      string  `json:"type"`
			X         int     `json:"x"`
			Y         int     `json:"y"`
			Button    string  `json:"button"`
			Pressed   bool    `json:"pressed"`
			Timestamp float64 `json:"timestamp"`
		}{e.Type, e.X, e.Y, e.Button, e.Pressed, e.Timestamp})
	case EventScroll:
		return json.Marshal(struct {
			Type      string  `json:"type"`
			X         int     `json:"x"`
			Y         int     `json:"y"`
			DX        int     `json:"dx"`
			DY        int     `json:"dy"`
			Timestamp float64 `json:"timestamp"`
		}{e.Type, e.X, e.Y, e.DX, e.DY, e.Timestamp})
	default:
		return json.Marshal(struct {
			Type      string  `json:"type"`
			X         int     `json:"x"`
			Y         int     `json:"y"`
			Timestamp float64 `json:"timestamp"`
		}{e.Type, e.X, e.Y, e.Timestamp})
	}
}
