package main

import (
	"unsafe"

	"github.com/lxn/walk"
	"github.com/lxn/win"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/wagentimHB/mousecontroller/internal/ui"
)

const (
	VK_F8  = 0x77
	VK_F12 = 0x7B

	// Mutex 名称
	mutexName = "Global\\MouseController_Mutex"

	// 热键 ID
	HOTKEY_F8  = 1
	HOTKEY_F12 = 2
)

var (
	kernel32                   = windows.NewLazySystemDLL("kernel32.dll")
	user32                     = windows.NewLazySystemDLL("user32.dll")
	shcore                     = windows.NewLazySystemDLL("shcore.dll")
	comctl32                   = windows.NewLazySystemDLL("comctl32.dll")
	procCreateMutex            = kernel32.NewProc("CreateMutexW")
	procGetLastError           = kernel32.NewProc("GetLastError")
	procRegisterHotKey         = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey       = user32.NewProc("UnregisterHotKey")
	procSetProcessDPIAware     = user32.NewProc("SetProcessDPIAware")
	procSetProcessDpiAwareness = shcore.NewProc("SetProcessDpiAwareness")
	procInitCommonControlsEx   = comctl32.NewProc("InitCommonControlsEx")
	procInitCommonControls     = comctl32.NewProc("InitCommonControls")
)

var guiCmd = &cobra.Command{
	Use:   "gui",
	Short: "启动图形界面",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGUI()
	},
}

func runGUI() error {
	// 必须在任何其他操作之前初始化 Common Controls，这是 walk 库的要求
	initCommonControls()

	// 设置 DPI Awareness（防止高分屏下坐标偏移）
	setDPIAware()

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("========== MouseController 启动 ==========")

	// 捕获 panic
	defer func() {
		if r := recover(); r != nil {
			log.Error("程序崩溃", zap.Any("panic", r))
			walk.MsgBox(nil, "错误", "程序崩溃，请查看日志", walk.MsgBoxIconError)
		}
	}()

	// 确保单实例运行
	if !ensureSingleInstance() {
		log.Warn("程序已在运行中")
		walk.MsgBox(nil, "MouseController", "程序已在运行中", walk.MsgBoxIconWarning)
		return nil
	}

	mainWindow, err := ui.NewMainWindow(log)
	if err != nil {
		log.Error("创建主窗口失败", zap.Error(err))
		return err
	}

	if err := mainWindow.Create(); err != nil {
		log.Error("创建窗口 UI 失败", zap.Error(err))
		return err
	}

	if err := mainWindow.SetupTray(); err != nil {
		log.Error("设置托盘失败", zap.Error(err))
		return err
	}

	mainWindow.Show()

	// 注册全局热键
	hwnd := mainWindow.Handle()
	registerHotKeys(hwnd, log)
	defer unregisterHotKeys(hwnd)

	log.Info("程序启动完成，进入主循环")
	mainWindow.Run()
	log.Info("程序正常退出")

	return nil
}

// ensureSingleInstance 确保单实例运行
func ensureSingleInstance() bool {
	mutexNamePtr, _ := windows.UTF16PtrFromString(mutexName)
	handle, _, _ := procCreateMutex.Call(
		0,
		0,
		uintptr(unsafe.Pointer(mutexNamePtr)),
	)

	if handle == 0 {
		return false
	}

	lastError, _, _ := procGetLastError.Call()
	if lastError == 183 { // ERROR_ALREADY_EXISTS
		return false
	}

	return true
}

// initCommonControls 初始化 Common Controls
func initCommonControls() {
	const ICC_WIN95_CLASSES = 0xFF

	type INITCOMMONCONTROLSEX struct {
		Size uint32
		ICC  uint32
	}

	icc := INITCOMMONCONTROLSEX{
		Size: uint32(unsafe.Sizeof(INITCOMMONCONTROLSEX{})),
		ICC:  ICC_WIN95_CLASSES,
	}

	ret, _, _ := procInitCommonControlsEx.Call(uintptr(unsafe.Pointer(&icc)))
	if ret == 0 {
		// 失败时回退到旧版 API
		procInitCommonControls.Call()
	}
}

// setDPIAware 设置 DPI 感知
func setDPIAware() {
	// 优先尝试新 API (Windows 8.1+)
	if procSetProcessDpiAwareness.Find() == nil {
		// PROCESS_SYSTEM_DPI_AWARE = 1
		procSetProcessDpiAwareness.Call(1)
		return
	}

	// 回退到旧 API (Windows Vista+)
	if procSetProcessDPIAware.Find() == nil {
		procSetProcessDPIAware.Call()
	}
}

// registerHotKeys 注册全局热键（F8 录制，F12 回放）
func registerHotKeys(hwnd win.HWND, log *zap.Logger) {
	ret, _, err := procRegisterHotKey.Call(
		uintptr(hwnd),
		HOTKEY_F8,
		0, // 无修饰键
		VK_F8,
	)
	if ret == 0 {
		log.Warn("注册 F8 热键失败", zap.Error(err))
	}

	ret, _, err = procRegisterHotKey.Call(
		uintptr(hwnd),
		HOTKEY_F12,
		0,
		VK_F12,
	)
	if ret == 0 {
		log.Warn("注册 F12 热键失败", zap.Error(err))
	}
}

// unregisterHotKeys 注销全局热键
func unregisterHotKeys(hwnd win.HWND) {
	procUnregisterHotKey.Call(uintptr(hwnd), HOTKEY_F8)
	procUnregisterHotKey.Call(uintptr(hwnd), HOTKEY_F12)
}
