package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wagentimHB/mousecontroller/internal/model"
)

const ConfigFileName = "config.json"

var (
	// ErrNotFound 录制文件不存在
	ErrNotFound = errors.New("recording file not found")
	// ErrMalformedData 录制文件不是合法 JSON 或缺少必要字段
	ErrMalformedData = errors.New("malformed recording data")
)

// SaveRecording 把事件序列连同元信息写入 JSON 文件，必要时创建父目录。
// 返回写入的完整录制数据。
func SaveRecording(path string, events []model.Event, startTime time.Time) (*model.Recording, error) {
	rec := &model.Recording{
		Metadata: model.Metadata{
			CreatedAt:  time.Now().Format(time.RFC3339),
			Duration:   time.Since(startTime).Seconds(),
			EventCount: len(events),
		},
		Events: events,
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create recording directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recording data: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write recording file: %w", err)
	}

	return rec, nil
}

// LoadRecording 从 JSON 文件加载录制数据
func LoadRecording(path string) (*model.Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read recording file: %w", err)
	}

	// metadata 和 events 两个顶层字段缺一不可
	var doc struct {
		Metadata *model.Metadata `json:"metadata"`
		Events   *[]model.Event  `json:"events"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	if doc.Metadata == nil || doc.Events == nil {
		return nil, fmt.Errorf("%w: missing metadata or events", ErrMalformedData)
	}

	return &model.Recording{Metadata: *doc.Metadata, Events: *doc.Events}, nil
}

// RecordingInfo 目录列表中的单个录制文件
type RecordingInfo struct {
	Path     string
	Metadata model.Metadata
	Err      error // 文件损坏时记录原因，不中断整个列表
}

// ListRecordings 列出目录下所有 JSON 录制文件
func ListRecordings(dir string) ([]RecordingInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	var infos []RecordingInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		rec, err := LoadRecording(path)
		if err != nil {
			infos = append(infos, RecordingInfo{Path: path, Err: err})
			continue
		}
		infos = append(infos, RecordingInfo{Path: path, Metadata: rec.Metadata})
	}

	return infos, nil
}

// GetExecutableDir 获取可执行文件所在目录
func GetExecutableDir() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Dir(exePath), nil
}

// ConfigPath 返回默认配置文件路径（可执行文件同目录）
func ConfigPath() (string, error) {
	execDir, err := GetExecutableDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(execDir, ConfigFileName), nil
}

// LoadConfig 从指定路径加载配置，文件不存在时返回默认配置
func LoadConfig(path string) (*model.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config model.Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveConfig 保存配置到指定路径
func SaveConfig(path string, config *model.Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config data: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
