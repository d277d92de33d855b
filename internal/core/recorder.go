package core

import (
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wagentimHB/mousecontroller/internal/model"
	"github.com/wagentimHB/mousecontroller/internal/storage"
)

// 鼠标移动采样间隔，避免记录微小抖动产生的海量事件
const mouseMoveInterval = 50 * time.Millisecond

// Recorder 录制引擎：订阅系统级鼠标事件，按距录制开始的秒数打时间戳，
// ESC 键随时结束录制
type Recorder struct {
	outputFile        string
	events            []model.Event
	startTime         time.Time
	mouseHook         uintptr
	keyboardHook      uintptr
	isRecording       bool
	lastMousePos      POINT
	lastMouseMoveTime time.Time
	mutex             sync.Mutex
	stopChan          chan bool
	log               *zap.Logger
	onStopped         func(rec *model.Recording)
}

// NewRecorder 创建新的录制器
func NewRecorder(outputFile string, log *zap.Logger) *Recorder {
	return &Recorder{
		outputFile: outputFile,
		log:        log,
	}
}

// SetOnStopped 设置录制结束回调（ESC 触发停止时也会调用）
func (r *Recorder) SetOnStopped(fn func(rec *model.Recording)) {
	r.onStopped = fn
}

// StartRecording 开始录制。重新开始会话会清空上一次的事件序列。
func (r *Recorder) StartRecording() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.isRecording {
		return fmt.Errorf("recording is already in progress")
	}

	r.events = make([]model.Event, 0)
	r.startTime = time.Now()
	r.lastMouseMoveTime = time.Time{}
	r.stopChan = make(chan bool)

	// 安装鼠标钩子
	mouseHook, err := r.setHook(WH_MOUSE_LL, syscall.NewCallback(r.mouseProc))
	if err != nil {
		return fmt.Errorf("failed to install mouse hook: %w", err)
	}
	r.mouseHook = mouseHook

	// 安装键盘钩子（只用于监听 ESC 停止键）
	keyboardHook, err := r.setHook(WH_KEYBOARD_LL, syscall.NewCallback(r.keyboardProc))
	if err != nil {
		r.unhook(r.mouseHook)
		r.mouseHook = 0
		return fmt.Errorf("failed to install keyboard hook: %w", err)
	}
	r.keyboardHook = keyboardHook

	r.isRecording = true
	r.log.Info("开始录制", zap.String("output", r.outputFile))

	// 启动消息循环（在独立 goroutine 中）
	go r.messageLoop()

	return nil
}

// StopRecording 停止录制并保存数据，返回完整的录制数据
func (r *Recorder) StopRecording() (*model.Recording, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isRecording {
		return nil, fmt.Errorf("no recording in progress")
	}

	r.unhook(r.mouseHook)
	r.unhook(r.keyboardHook)
	r.mouseHook = 0
	r.keyboardHook = 0
	r.isRecording = false

	// 消息循环在保存之前就结束，保存失败也不留下后台 goroutine
	close(r.stopChan)

	rec, err := storage.SaveRecording(r.outputFile, r.events, r.startTime)
	if err != nil {
		return nil, fmt.Errorf("failed to save recording: %w", err)
	}

	r.log.Info("录制已保存",
		zap.String("output", r.outputFile),
		zap.Int("events", rec.Metadata.EventCount),
		zap.Float64("duration", rec.Metadata.Duration),
	)

	return rec, nil
}

// IsRecording 检查是否正在录制
func (r *Recorder) IsRecording() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.isRecording
}

// EventCount 返回当前已录制的事件数量
func (r *Recorder) EventCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.events)
}

// setHook 安装低级钩子
func (r *Recorder) setHook(hookType int, callback uintptr) (uintptr, error) {
	hook, _, err := procSetWindowsHookEx.Call(
		uintptr(hookType),
		callback,
		0,
		0,
	)
	if hook == 0 {
		return 0, fmt.Errorf("SetWindowsHookEx failed: %v", err)
	}
	return hook, nil
}

// unhook 卸载钩子
func (r *Recorder) unhook(hook uintptr) {
	if hook != 0 {
		procUnhookWindowsHookEx.Call(hook)
	}
}

// elapsed 距录制开始的秒数
func (r *Recorder) elapsed() float64 {
	return time.Since(r.startTime).Seconds()
}

// mouseProc 鼠标钩子回调
func (r *Recorder) mouseProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 && r.isRecording {
		mouseInfo := (*MSLLHOOKSTRUCT)(unsafe.Pointer(lParam))
		x := int(mouseInfo.Pt.X)
		y := int(mouseInfo.Pt.Y)

		switch wParam {
		case WM_MOUSEMOVE:
			r.recordMove(mouseInfo.Pt)

		case WM_LBUTTONDOWN:
			r.recordClick(x, y, model.ButtonLeft, true)
		case WM_LBUTTONUP:
			r.recordClick(x, y, model.ButtonLeft, false)
		case WM_RBUTTONDOWN:
			r.recordClick(x, y, model.ButtonRight, true)
		case WM_RBUTTONUP:
			r.recordClick(x, y, model.ButtonRight, false)
		case WM_MBUTTONDOWN:
			r.recordClick(x, y, model.ButtonMiddle, true)
		case WM_MBUTTONUP:
			r.recordClick(x, y, model.ButtonMiddle, false)

		case WM_MOUSEWHEEL:
			r.recordScroll(x, y, 0, wheelDelta(mouseInfo.MouseData))
		case WM_MOUSEHWHEEL:
			r.recordScroll(x, y, wheelDelta(mouseInfo.MouseData), 0)
		}
	}

	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

// recordMove 记录移动事件。限频采样：至少 50ms 间隔，且坐标必须真的变化。
func (r *Recorder) recordMove(pt POINT) {
	now := time.Now()
	if now.Sub(r.lastMouseMoveTime) < mouseMoveInterval {
		return
	}
	if pt.X == r.lastMousePos.X && pt.Y == r.lastMousePos.Y {
		return
	}
	r.lastMousePos = pt
	r.lastMouseMoveTime = now

	r.events = append(r.events, model.Event{
		Type:      model.EventMove,
		X:         int(pt.X),
		Y:         int(pt.Y),
		Timestamp: r.elapsed(),
	})
}

// recordClick 记录按下或释放事件
func (r *Recorder) recordClick(x, y int, button string, pressed bool) {
	r.events = append(r.events, model.Event{
		Type:      model.EventClick,
		X:         x,
		Y:         y,
		Button:    button,
		Pressed:   pressed,
		Timestamp: r.elapsed(),
	})
}

// recordScroll 记录滚轮事件
func (r *Recorder) recordScroll(x, y, dx, dy int) {
	r.events = append(r.events, model.Event{
		Type:      model.EventScroll,
		X:         x,
		Y:         y,
		DX:        dx,
		DY:        dy,
		Timestamp: r.elapsed(),
	})
}

// keyboardProc 键盘钩子回调，只响应 ESC 停止键
func (r *Recorder) keyboardProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 && r.isRecording {
		if wParam == WM_KEYDOWN || wParam == WM_SYSKEYDOWN {
			kbInfo := (*KBDLLHOOKSTRUCT)(unsafe.Pointer(lParam))
			if kbInfo.VkCode == VK_ESCAPE {
				r.log.Info("检测到 ESC，停止录制")
				// 钩子回调不能做耗时操作，停止流程交给独立 goroutine
				go func() {
					rec, err := r.StopRecording()
					if err != nil {
						r.log.Error("停止录制失败", zap.Error(err))
						return
					}
					if r.onStopped != nil {
						r.onStopped(rec)
					}
				}()
			}
		}
	}

	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

// wheelDelta 从 MouseData 高位字解析滚轮格数
func wheelDelta(mouseData uint32) int {
	return int(int16(mouseData>>16)) / WHEEL_DELTA
}

// messageLoop Windows 消息循环
func (r *Recorder) messageLoop() {
	var msg MSG
	for {
		select {
		case <-r.stopChan:
			return
		default:
			ret, _, _ := procGetMessage.Call(
				uintptr(unsafe.Pointer(&msg)),
				0,
				0,
				0,
			)
			if ret == 0 {
				return
			}
		}
	}
}
