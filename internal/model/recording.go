package model

// Metadata 存储录制的元信息
type Metadata struct {
	CreatedAt  string  `json:"created_at"`  // 创建时间（ISO-8601）
	Duration   float64 `json:"duration"`    // 录制时长（秒）
	EventCount int     `json:"event_count"` // 总事件数量
}

// Recording 表示完整的录制数据（对应录制 JSON 文件）
type Recording struct {
	Metadata Metadata `json:"metadata"`
	Events   []Event  `json:"events"`
}
