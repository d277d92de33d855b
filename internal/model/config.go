package model

// Config 表示应用配置结构（对应 config.json）
type Config struct {
	DefaultSpeed  float64 `json:"default_speed"`  // 回放速度倍率（0.5=慢速, 1.0=原速）
	DelayStart    int     `json:"delay_start"`    // 回放前倒计时秒数
	ReplayTimes   int     `json:"replay_times"`   // 次数模式：回放次数
	ReplayHours   float64 `json:"replay_hours"`   // 时间模式：持续小时数（0=禁用）
	ReplayLatency float64 `json:"replay_latency"` // 两次回放之间的停顿秒数
	LastRecording string  `json:"last_recording"` // 上次使用的录制文件路径
}

// NewConfig 创建一个新的默认配置
func NewConfig() *Config {
	return &Config{
		DefaultSpeed:  1.0,
		DelayStart:    3,
		ReplayTimes:   1,
		ReplayHours:   0,
		ReplayLatency: 2.0,
		LastRecording: "",
	}
}
