package ui

import (
	"fmt"

	"github.com/lxn/walk"
	"github.com/lxn/walk/declarative"
	"go.uber.org/zap"

	"github.com/wagentimHB/mousecontroller/internal/core"
	"github.com/wagentimHB/mousecontroller/internal/model"
	"github.com/wagentimHB/mousecontroller/internal/storage"
)

const defaultRecordingFile = "data/mouse_recording.json"

// AppMainWindow 主窗口
type AppMainWindow struct {
	*walk.MainWindow
	recorder   *core.Recorder
	player     *core.Player
	trayIcon   *walk.NotifyIcon
	config     *model.Config
	configPath string
	log        *zap.Logger

	// UI 控件
	statusLabel *walk.Label
	fileEdit    *walk.LineEdit
	recordBtn   *walk.PushButton
	playBtn     *walk.PushButton
	speedSlider *walk.Slider
	speedLabel  *walk.Label
	timesEdit   *walk.NumberEdit
	hoursEdit   *walk.NumberEdit
	latencyEdit *walk.NumberEdit
	progressBar *walk.ProgressBar
}

// NewMainWindow 创建新的主窗口
func NewMainWindow(log *zap.Logger) (*AppMainWindow, error) {
	mw := &AppMainWindow{
		player: core.NewPlayer(core.NewSimulator(), log),
		log:    log,
	}

	// 加载配置
	configPath, err := storage.ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to locate config: %w", err)
	}
	config, err := storage.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	mw.config = config
	mw.configPath = configPath

	return mw, nil
}

// Create 创建并显示窗口
func (mw *AppMainWindow) Create() error {
	var statusLabel *walk.Label
	var fileEdit *walk.LineEdit
	var recordBtn, playBtn *walk.PushButton
	var speedSlider *walk.Slider
	var speedLabel *walk.Label
	var timesEdit, hoursEdit, latencyEdit *walk.NumberEdit
	var progressBar *walk.ProgressBar

	lastFile := mw.config.LastRecording
	if lastFile == "" {
		lastFile = defaultRecordingFile
	}

	// 使用声明式方式创建 UI
	err := (declarative.MainWindow{
		AssignTo: &mw.MainWindow,
		Title:    "MouseController",
		Size:     declarative.Size{Width: 360, Height: 520},
		Layout:   declarative.VBox{},
		Children: []declarative.Widget{
			// 状态显示
			declarative.Composite{
				Layout: declarative.VBox{Margins: declarative.Margins{Left: 10, Top: 15, Right: 10, Bottom: 10}},
				Children: []declarative.Widget{
					declarative.Label{
						AssignTo:  &statusLabel,
						Text:      "就绪",
						Font:      declarative.Font{PointSize: 12, Bold: true},
						Alignment: declarative.AlignHCenterVNear,
					},
				},
			},

			// 录制文件
			declarative.Composite{
				Layout: declarative.HBox{Margins: declarative.Margins{Left: 10, Right: 10}},
				Children: []declarative.Widget{
					declarative.Label{Text: "录制文件:", MinSize: declarative.Size{Width: 70}},
					declarative.LineEdit{
						AssignTo: &fileEdit,
						Text:     lastFile,
					},
					declarative.PushButton{
						Text:      "浏览...",
						OnClicked: func() { mw.onBrowseClick() },
					},
				},
			},

			// 操作按钮
			declarative.Composite{
				Layout: declarative.HBox{Margins: declarative.Margins{Left: 10, Top: 10, Right: 10, Bottom: 10}},
				Children: []declarative.Widget{
					declarative.PushButton{
						AssignTo:  &recordBtn,
						Text:      "🔴 录制 (F8)",
						MinSize:   declarative.Size{Width: 140, Height: 40},
						OnClicked: func() { mw.onRecordClick() },
					},
					declarative.PushButton{
						AssignTo:  &playBtn,
						Text:      "🟢 回放 (F12)",
						MinSize:   declarative.Size{Width: 140, Height: 40},
						OnClicked: func() { mw.onPlayClick() },
					},
				},
			},

			// 回放配置
			declarative.GroupBox{
				Title:  "回放配置",
				Layout: declarative.VBox{Margins: declarative.Margins{Left: 10, Top: 10, Right: 10, Bottom: 10}},
				Children: []declarative.Widget{
					// 速度控制
					declarative.Composite{
						Layout: declarative.HBox{Spacing: 5},
						Children: []declarative.Widget{
							declarative.Label{Text: "速度:", MinSize: declarative.Size{Width: 70}},
							declarative.Slider{
								AssignTo:       &speedSlider,
								MinValue:       50,
								MaxValue:       300,
								Value:          int(mw.config.DefaultSpeed * 100),
								ToolTipText:    "调整回放速度",
								OnValueChanged: func() { mw.onSpeedChanged() },
							},
							declarative.Label{
								AssignTo: &speedLabel,
								Text:     fmt.Sprintf("%.1fx", mw.config.DefaultSpeed),
								MinSize:  declarative.Size{Width: 40},
							},
						},
					},

					// 回放次数
					declarative.Composite{
						Layout: declarative.HBox{},
						Children: []declarative.Widget{
							declarative.Label{Text: "回放次数:", MinSize: declarative.Size{Width: 70}},
							declarative.NumberEdit{
								AssignTo: &timesEdit,
								Value:    float64(mw.config.ReplayTimes),
								Decimals: 0,
								MinValue: 1,
								MaxValue: 100,
							},
						},
					},

					// 时间模式
					declarative.Composite{
						Layout: declarative.HBox{},
						Children: []declarative.Widget{
							declarative.Label{Text: "持续小时:", MinSize: declarative.Size{Width: 70}},
							declarative.NumberEdit{
								AssignTo:    &hoursEdit,
								Value:       mw.config.ReplayHours,
								Decimals:    1,
								MinValue:    0,
								MaxValue:    240,
								ToolTipText: "大于 0 时按时长持续回放，忽略次数",
							},
						},
					},

					// 回放间隔
					declarative.Composite{
						Layout: declarative.HBox{},
						Children: []declarative.Widget{
							declarative.Label{Text: "间隔秒数:", MinSize: declarative.Size{Width: 70}},
							declarative.NumberEdit{
								AssignTo: &latencyEdit,
								Value:    mw.config.ReplayLatency,
								Decimals: 1,
								MinValue: 0,
								MaxValue: 60,
							},
						},
					},
				},
			},

			// 回放进度
			declarative.ProgressBar{
				AssignTo: &progressBar,
				MinValue: 0,
				MaxValue: 100,
			},
		},
	}).Create()

	if err != nil {
		return err
	}

	// 设置关闭事件（最小化到托盘）
	mw.MainWindow.Closing().Attach(func(canceled *bool, reason walk.CloseReason) {
		*canceled = true
		mw.Hide()
	})

	// 保存控件引用
	mw.statusLabel = statusLabel
	mw.fileEdit = fileEdit
	mw.recordBtn = recordBtn
	mw.playBtn = playBtn
	mw.speedSlider = speedSlider
	mw.speedLabel = speedLabel
	mw.timesEdit = timesEdit
	mw.hoursEdit = hoursEdit
	mw.latencyEdit = latencyEdit
	mw.progressBar = progressBar

	// 设置回放通知回调：回调来自后台 goroutine，必须经 Synchronize 更新 UI
	mw.player.SetCallbacks(
		func(run, total int) {
			mw.Synchronize(func() {
				if total == core.TimeBasedTotal {
					mw.statusLabel.SetText(fmt.Sprintf("第 %d 次回放（时间模式）", run))
				} else {
					mw.statusLabel.SetText(fmt.Sprintf("第 %d/%d 次回放", run, total))
				}
			})
		},
		func(percent int) {
			mw.Synchronize(func() {
				mw.progressBar.SetValue(percent)
			})
		},
		func() {
			mw.Synchronize(func() {
				mw.statusLabel.SetText("回放完成")
				mw.playBtn.SetText("🟢 回放 (F12)")
				mw.progressBar.SetValue(100)
			})
		},
		nil,
	)

	return nil
}

// onBrowseClick 浏览录制文件
func (mw *AppMainWindow) onBrowseClick() {
	dlg := new(walk.FileDialog)
	dlg.Title = "选择录制文件"
	dlg.Filter = "录制文件 (*.json)|*.json|所有文件 (*.*)|*.*"

	ok, err := dlg.ShowOpen(mw)
	if err != nil || !ok {
		return
	}
	mw.fileEdit.SetText(dlg.FilePath)
	mw.config.LastRecording = dlg.FilePath
	mw.saveConfig()
}

// onRecordClick 录制按钮点击事件
func (mw *AppMainWindow) onRecordClick() {
	if mw.recorder != nil && mw.recorder.IsRecording() {
		// 停止录制
		rec, err := mw.recorder.StopRecording()
		if err != nil {
			walk.MsgBox(mw, "错误", fmt.Sprintf("停止录制失败: %v", err), walk.MsgBoxIconError)
			return
		}
		mw.onRecordingSaved(rec)
		return
	}

	// 开始录制
	if mw.player.IsPlaying() {
		walk.MsgBox(mw, "提示", "回放进行中，无法开始录制", walk.MsgBoxIconWarning)
		return
	}

	mw.recorder = core.NewRecorder(mw.fileEdit.Text(), mw.log)
	mw.recorder.SetOnStopped(func(rec *model.Recording) {
		// ESC 停止时从钩子线程进入，这里切回 UI 线程
		mw.Synchronize(func() { mw.onRecordingSaved(rec) })
	})

	if err := mw.recorder.StartRecording(); err != nil {
		walk.MsgBox(mw, "错误", fmt.Sprintf("开始录制失败: %v", err), walk.MsgBoxIconError)
		return
	}
	mw.recordBtn.SetText("⏹️ 停止录制 (F8)")
	mw.statusLabel.SetText("录制中... 按 ESC 结束")
}

// onRecordingSaved 录制结束后的 UI 更新
func (mw *AppMainWindow) onRecordingSaved(rec *model.Recording) {
	mw.recordBtn.SetText("🔴 录制 (F8)")
	mw.statusLabel.SetText(fmt.Sprintf("录制完成（%d 个事件，%.1f 秒）", rec.Metadata.EventCount, rec.Metadata.Duration))
	mw.config.LastRecording = mw.fileEdit.Text()
	mw.saveConfig()
}

// onPlayClick 回放按钮点击事件
func (mw *AppMainWindow) onPlayClick() {
	if mw.player.IsPlaying() {
		// 停止回放
		if err := mw.player.Stop(); err != nil {
			walk.MsgBox(mw, "错误", fmt.Sprintf("停止回放失败: %v", err), walk.MsgBoxIconError)
			return
		}
		mw.playBtn.SetText("🟢 回放 (F12)")
		mw.statusLabel.SetText("回放已取消")
		return
	}

	// 加载录制并开始回放
	rec, err := storage.LoadRecording(mw.fileEdit.Text())
	if err != nil {
		walk.MsgBox(mw, "错误", fmt.Sprintf("加载录制失败: %v", err), walk.MsgBoxIconError)
		return
	}

	cfg := core.ReplayConfig{
		Speed:         float64(mw.speedSlider.Value()) / 100.0,
		DelayStart:    mw.config.DelayStart,
		ReplayTimes:   int(mw.timesEdit.Value()),
		ReplayHours:   mw.hoursEdit.Value(),
		ReplayLatency: mw.latencyEdit.Value(),
	}

	if err := mw.player.Start(rec, cfg); err != nil {
		walk.MsgBox(mw, "错误", fmt.Sprintf("开始回放失败: %v", err), walk.MsgBoxIconError)
		return
	}

	mw.playBtn.SetText("⏹️ 停止回放 (F12)")
	mw.progressBar.SetValue(0)
	if mw.config.DelayStart > 0 {
		mw.statusLabel.SetText(fmt.Sprintf("%d 秒后开始回放...", mw.config.DelayStart))
	}

	// 持久化本次参数
	mw.config.DefaultSpeed = cfg.Speed
	mw.config.ReplayTimes = cfg.ReplayTimes
	mw.config.ReplayHours = cfg.ReplayHours
	mw.config.ReplayLatency = cfg.ReplayLatency
	mw.config.LastRecording = mw.fileEdit.Text()
	mw.saveConfig()
}

// onSpeedChanged 速度改变事件
func (mw *AppMainWindow) onSpeedChanged() {
	value := mw.speedSlider.Value()
	speedFactor := float64(value) / 100.0
	mw.config.DefaultSpeed = speedFactor
	mw.speedLabel.SetText(fmt.Sprintf("%.1fx", speedFactor))
	mw.saveConfig()
}

// saveConfig 保存配置
func (mw *AppMainWindow) saveConfig() {
	if err := storage.SaveConfig(mw.configPath, mw.config); err != nil {
		mw.log.Error("保存配置失败", zap.Error(err))
	}
}

// Show 显示窗口
func (mw *AppMainWindow) Show() {
	mw.MainWindow.Show()
}

// TriggerRecord 触发录制（用于热键）
func (mw *AppMainWindow) TriggerRecord() {
	mw.onRecordClick()
}

// TriggerPlay 触发回放（用于热键）
func (mw *AppMainWindow) TriggerPlay() {
	mw.onPlayClick()
}
