package core

import (
	"fmt"
	"unsafe"

	"github.com/wagentimHB/mousecontroller/internal/model"
)

// Simulator 事件执行器的 Windows 实现，通过 SetCursorPos 和 SendInput
// 把录制的事件注入到指针设备
type Simulator struct{}

// NewSimulator 创建新的执行器
func NewSimulator() *Simulator {
	return &Simulator{}
}

// Execute 执行单个事件
func (s *Simulator) Execute(event *model.Event) error {
	switch event.Type {
	case model.EventMove:
		return s.moveTo(event.X, event.Y)
	case model.EventClick:
		if err := s.moveTo(event.X, event.Y); err != nil {
			return err
		}
		return s.click(event.Button, event.Pressed)
	case model.EventScroll:
		if err := s.moveTo(event.X, event.Y); err != nil {
			return err
		}
		return s.scroll(event.DX, event.DY)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
}

// moveTo 设置鼠标绝对位置
func (s *Simulator) moveTo(x, y int) error {
	ret, _, err := procSetCursorPos.Call(uintptr(x), uintptr(y))
	if ret == 0 {
		return fmt.Errorf("SetCursorPos failed: %v", err)
	}
	return nil
}

// click 按下或释放指定按键
func (s *Simulator) click(button string, pressed bool) error {
	var flag uint32
	switch button {
	case model.ButtonLeft:
		flag = MOUSEEVENTF_LEFTDOWN
		if !pressed {
			flag = MOUSEEVENTF_LEFTUP
		}
	case model.ButtonRight:
		flag = MOUSEEVENTF_RIGHTDOWN
		if !pressed {
			flag = MOUSEEVENTF_RIGHTUP
		}
	case model.ButtonMiddle:
		flag = MOUSEEVENTF_MIDDLEDOWN
		if !pressed {
			flag = MOUSEEVENTF_MIDDLEUP
		}
	default:
		return fmt.Errorf("unknown button: %s", button)
	}

	return s.sendMouseInput(flag, 0)
}

// scroll 应用滚轮增量，纵向和横向各发一次输入
func (s *Simulator) scroll(dx, dy int) error {
	if dy != 0 {
		if err := s.sendMouseInput(MOUSEEVENTF_WHEEL, uint32(int32(dy*WHEEL_DELTA))); err != nil {
			return err
		}
	}
	if dx != 0 {
		return s.sendMouseInput(MOUSEEVENTF_HWHEEL, uint32(int32(dx*WHEEL_DELTA)))
	}
	return nil
}

// sendMouseInput 发送一条鼠标输入
func (s *Simulator) sendMouseInput(flags uint32, mouseData uint32) error {
	input := INPUT{
		Type: INPUT_MOUSE,
		Mi: MOUSEINPUT{
			MouseData: mouseData,
			DwFlags:   flags,
		},
	}
	ret, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&input)), unsafe.Sizeof(input))
	if ret == 0 {
		return fmt.Errorf("SendInput failed: %v", err)
	}
	return nil
}
