package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wagentimHB/mousecontroller/internal/model"
)

// 回放参数校验错误，均在后台任务启动前同步返回
var (
	ErrEmptyRecording  = errors.New("recording contains no events")
	ErrInvalidSpeed    = errors.New("replay speed must be positive")
	ErrInvalidDuration = errors.New("invalid replay duration")
)

// TimeBasedTotal 时间模式下总回放次数未知，通知中用 -1 表示
const TimeBasedTotal = -1

// Executor 事件执行器，把单个事件作用到指针设备
type Executor interface {
	Execute(event *model.Event) error
}

// ReplayConfig 回放参数。ReplayHours 大于 0 时进入时间模式，
// 否则按 ReplayTimes 进入次数模式。
type ReplayConfig struct {
	Speed         float64 // 速度倍率，所有时间戳除以该值
	DelayStart    int     // 回放前倒计时秒数
	ReplayTimes   int     // 次数模式：回放次数
	ReplayHours   float64 // 时间模式：持续小时数
	ReplayLatency float64 // 两次回放之间的停顿秒数
}

// Player 回放调度器：把静态的事件序列按录制时间戳节奏
// 逐个交给执行器，支持多次回放、进度通知和取消。
type Player struct {
	executor  Executor
	log       *zap.Logger
	isPlaying bool
	mutex     sync.Mutex
	stopChan  chan struct{}
	doneChan  chan struct{}

	onRunStarted func(run, total int)
	onProgress   func(percent int)
	onFinished   func()
	onEventError func(err error)
}

// NewPlayer 创建新的回放器
func NewPlayer(executor Executor, log *zap.Logger) *Player {
	return &Player{
		executor: executor,
		log:      log,
	}
}

// SetCallbacks 设置回放通知回调。回调在回放 goroutine 中调用，不能阻塞；
// onEventError 对应单个事件执行失败，回放会继续。
func (p *Player) SetCallbacks(onRunStarted func(run, total int), onProgress func(percent int), onFinished func(), onEventError func(err error)) {
	p.onRunStarted = onRunStarted
	p.onProgress = onProgress
	p.onFinished = onFinished
	p.onEventError = onEventError
}

// Start 启动回放。配置或数据不合法时同步返回错误，后台任务不会启动。
func (p *Player) Start(rec *model.Recording, cfg ReplayConfig) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.isPlaying {
		return fmt.Errorf("playback is already in progress")
	}
	if rec == nil || len(rec.Events) == 0 {
		return ErrEmptyRecording
	}
	if cfg.Speed <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, cfg.Speed)
	}
	if cfg.ReplayHours <= 0 && cfg.ReplayTimes < 1 {
		return fmt.Errorf("%w: replay times %d", ErrInvalidDuration, cfg.ReplayTimes)
	}

	p.isPlaying = true
	p.stopChan = make(chan struct{})
	p.doneChan = make(chan struct{})

	go p.playbackLoop(rec, cfg, p.stopChan, p.doneChan)

	return nil
}

// Stop 取消回放。取消不是错误：回放在下一个检查点停止，不发 finished 通知。
func (p *Player) Stop() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.isPlaying {
		return fmt.Errorf("no playback in progress")
	}

	p.isPlaying = false
	close(p.stopChan)

	return nil
}

// IsPlaying 检查是否正在回放
func (p *Player) IsPlaying() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.isPlaying
}

// Done 返回在回放 goroutine 退出时关闭的通道（无论正常结束还是取消）
func (p *Player) Done() <-chan struct{} {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.doneChan
}

// playbackLoop 回放循环。stop 和 done 是本次回放自己的通道：
// 停止后立刻重启时，旧回放的收尾不能碰到新回放刚换上的字段。
func (p *Player) playbackLoop(rec *model.Recording, cfg ReplayConfig, stop, done chan struct{}) {
	defer func() {
		p.mutex.Lock()
		if p.doneChan == done {
			p.isPlaying = false
		}
		p.mutex.Unlock()
		close(done)
	}()

	// 回放前倒计时，按 1 秒步进，期间可随时取消
	for i := cfg.DelayStart; i > 0; i-- {
		if !p.sleep(stop, time.Second) {
			return
		}
	}

	var finished bool
	if cfg.ReplayHours > 0 {
		finished = p.runTimeBased(rec, cfg, stop)
	} else {
		finished = p.runCountBased(rec, cfg, stop)
	}

	if finished && p.onFinished != nil {
		p.onFinished()
	}
}

// runCountBased 次数模式：完整回放事件序列 ReplayTimes 次。
// 返回 false 表示被取消。
func (p *Player) runCountBased(rec *model.Recording, cfg ReplayConfig, stop chan struct{}) bool {
	events := rec.Events

	for run := 0; run < cfg.ReplayTimes; run++ {
		if cancelled(stop) {
			return false
		}
		p.notifyRunStarted(run+1, cfg.ReplayTimes)

		runStart := time.Now()
		for i := range events {
			if cancelled(stop) {
				return false
			}
			if !p.waitForEvent(&events[i], cfg.Speed, runStart, stop) {
				return false
			}
			p.execute(&events[i])
			p.notifyProgress(((run * 100) + (100*i)/len(events)) / cfg.ReplayTimes)
		}

		// 最后一次回放之后不再停顿
		if run < cfg.ReplayTimes-1 && cfg.ReplayLatency > 0 {
			if !p.sleep(stop, durationFromSeconds(cfg.ReplayLatency)) {
				return false
			}
		}
	}

	return true
}

// runTimeBased 时间模式：在给定时长预算内循环回放。
// 剩余预算不足一整次回放时不再开始新的回放；预算在回放途中耗尽
// 视为正常结束而不是错误。返回 false 表示被取消。
func (p *Player) runTimeBased(rec *model.Recording, cfg ReplayConfig, stop chan struct{}) bool {
	events := rec.Events
	budget := durationFromSeconds(cfg.ReplayHours * 3600)
	budgetStart := time.Now()
	endTime := budgetStart.Add(budget)
	runDuration := durationFromSeconds(rec.Metadata.Duration / cfg.Speed)

	run := 0
	for time.Now().Before(endTime) {
		if cancelled(stop) {
			return false
		}
		if time.Until(endTime) < runDuration {
			break
		}

		run++
		p.notifyRunStarted(run, TimeBasedTotal)

		runStart := time.Now()
		for i := range events {
			if cancelled(stop) {
				return false
			}
			if !p.waitForEventBounded(&events[i], cfg.Speed, runStart, endTime, stop) {
				return false
			}
			if !time.Now().Before(endTime) {
				return true
			}
			p.execute(&events[i])

			// 时间模式下总事件数未知，进度按预算消耗比例计算
			progress := int(time.Since(budgetStart) * 100 / budget)
			if progress > 100 {
				progress = 100
			}
			p.notifyProgress(progress)
		}

		// 两次回放之间的停顿不超过剩余预算
		if cfg.ReplayLatency > 0 {
			pause := durationFromSeconds(cfg.ReplayLatency)
			if remaining := time.Until(endTime); pause > remaining {
				pause = remaining
			}
			if pause > 0 && !p.sleep(stop, pause) {
				return false
			}
		}
	}

	return true
}

// waitForEvent 以本次回放的起始时刻为基准等待事件到点。
// 每次都从绝对起点重新计算，调度开销不会逐步累积成漂移。
func (p *Player) waitForEvent(event *model.Event, speed float64, runStart time.Time, stop chan struct{}) bool {
	target := durationFromSeconds(event.Timestamp / speed)
	wait := target - time.Since(runStart)
	if wait <= 0 {
		return true
	}
	return p.sleep(stop, wait)
}

// waitForEventBounded 同 waitForEvent，但等待不会越过预算终点
func (p *Player) waitForEventBounded(event *model.Event, speed float64, runStart, endTime time.Time, stop chan struct{}) bool {
	target := durationFromSeconds(event.Timestamp / speed)
	wait := target - time.Since(runStart)
	if remaining := time.Until(endTime); wait > remaining {
		wait = remaining
	}
	if wait <= 0 {
		return true
	}
	return p.sleep(stop, wait)
}

// execute 执行单个事件。失败只记录并通知，不中断回放。
func (p *Player) execute(event *model.Event) {
	if err := p.executor.Execute(event); err != nil {
		p.log.Warn("事件执行失败",
			zap.String("type", event.Type),
			zap.Float64("timestamp", event.Timestamp),
			zap.Error(err),
		)
		if p.onEventError != nil {
			p.onEventError(err)
		}
	}
}

// sleep 可取消睡眠，返回 false 表示收到取消请求
func (p *Player) sleep(stop chan struct{}, d time.Duration) bool {
	select {
	case <-stop:
		return false
	case <-time.After(d):
		return true
	}
}

// cancelled 检查取消标志
func cancelled(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func (p *Player) notifyRunStarted(run, total int) {
	if p.onRunStarted != nil {
		p.onRunStarted(run, total)
	}
}

func (p *Player) notifyProgress(percent int) {
	if p.onProgress != nil {
		p.onProgress(percent)
	}
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
