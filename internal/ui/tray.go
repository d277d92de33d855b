package ui

import (
	"github.com/lxn/walk"
)

// SetupTray 设置系统托盘
func (mw *AppMainWindow) SetupTray() error {
	ni, err := walk.NewNotifyIcon(mw)
	if err != nil {
		return err
	}

	mw.trayIcon = ni

	// 设置托盘图标（使用应用程序图标）
	icon, err := walk.NewIconFromResourceId(1)
	if err != nil {
		icon, _ = walk.Resources.Icon("app.ico")
	}
	if icon != nil {
		ni.SetIcon(icon)
	}

	ni.SetToolTip("MouseController - 鼠标录制回放")

	if err := mw.createTrayMenu(); err != nil {
		return err
	}

	// 单击显示主窗口
	ni.MouseDown().Attach(func(x, y int, button walk.MouseButton) {
		if button == walk.LeftButton {
			mw.showMainWindow()
		}
	})

	return ni.SetVisible(true)
}

// createTrayMenu 创建托盘菜单
func (mw *AppMainWindow) createTrayMenu() error {
	showAction := walk.NewAction()
	showAction.SetText("显示主界面")
	showAction.Triggered().Attach(func() {
		mw.showMainWindow()
	})

	aboutAction := walk.NewAction()
	aboutAction.SetText("关于")
	aboutAction.Triggered().Attach(func() {
		walk.MsgBox(mw, "关于 MouseController",
			"MouseController v1.0\n\n"+
				"鼠标录制与回放工具\n\n"+
				"支持按速度倍率、次数或时长回放\n"+
				"录制时按 ESC 结束",
			walk.MsgBoxIconInformation)
	})

	exitAction := walk.NewAction()
	exitAction.SetText("退出程序")
	exitAction.Triggered().Attach(func() {
		if walk.MsgBox(mw, "确认退出", "确定要退出 MouseController 吗？", walk.MsgBoxYesNo|walk.MsgBoxIconQuestion) == walk.DlgCmdYes {
			mw.exitApplication()
		}
	})

	if err := mw.trayIcon.ContextMenu().Actions().Add(showAction); err != nil {
		return err
	}
	if err := mw.trayIcon.ContextMenu().Actions().Add(aboutAction); err != nil {
		return err
	}
	if err := mw.trayIcon.ContextMenu().Actions().Add(walk.NewSeparatorAction()); err != nil {
		return err
	}
	return mw.trayIcon.ContextMenu().Actions().Add(exitAction)
}

// showMainWindow 显示主窗口
func (mw *AppMainWindow) showMainWindow() {
	mw.Show()
	mw.BringToTop()
	mw.SetFocus()
}

// exitApplication 退出应用程序
func (mw *AppMainWindow) exitApplication() {
	// 停止录制（如果正在进行）
	if mw.recorder != nil && mw.recorder.IsRecording() {
		mw.recorder.StopRecording()
	}

	// 停止回放（如果正在进行）
	if mw.player != nil && mw.player.IsPlaying() {
		mw.player.Stop()
	}

	if mw.trayIcon != nil {
		mw.trayIcon.Dispose()
	}

	walk.App().Exit(0)
}
