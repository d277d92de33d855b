package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wagentimHB/mousecontroller/internal/model"
)

type recordedCall struct {
	event model.Event
	at    time.Time
}

// fakeExecutor 记录每次执行的事件和时刻，可注入失败
type fakeExecutor struct {
	mu    sync.Mutex
	calls []recordedCall
	fail  func(index int, e *model.Event) error
}

func (f *fakeExecutor) Execute(e *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	index := len(f.calls)
	f.calls = append(f.calls, recordedCall{event: *e, at: time.Now()})
	if f.fail != nil {
		return f.fail(index, e)
	}
	return nil
}

func (f *fakeExecutor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeExecutor) snapshot() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

// notifications 收集回放通知，所有回调都可能来自回放 goroutine
type notifications struct {
	mu        sync.Mutex
	runs      [][2]int
	progress  []int
	finished  int
	eventErrs []error
}

func (n *notifications) attach(p *Player) {
	p.SetCallbacks(
		func(run, total int) {
			n.mu.Lock()
			defer n.mu.Unlock()
			n.runs = append(n.runs, [2]int{run, total})
		},
		func(percent int) {
			n.mu.Lock()
			defer n.mu.Unlock()
			n.progress = append(n.progress, percent)
		},
		func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			n.finished++
		},
		func(err error) {
			n.mu.Lock()
			defer n.mu.Unlock()
			n.eventErrs = append(n.eventErrs, err)
		},
	)
}

func (n *notifications) finishedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.finished
}

func (n *notifications) snapshotRuns() [][2]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][2]int(nil), n.runs...)
}

func (n *notifications) snapshotProgress() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.progress...)
}

func newTestRecording(events []model.Event) *model.Recording {
	duration := 0.0
	if len(events) > 0 {
		duration = events[len(events)-1].Timestamp
	}
	return &model.Recording{
		Metadata: model.Metadata{
			CreatedAt:  time.Now().Format(time.RFC3339),
			Duration:   duration,
			EventCount: len(events),
		},
		Events: events,
	}
}

func waitDone(t *testing.T, p *Player) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not terminate in time")
	}
}

func TestStartRejectsEmptyRecording(t *testing.T) {
	exec := &fakeExecutor{}
	p := NewPlayer(exec, zap.NewNop())

	err := p.Start(newTestRecording(nil), ReplayConfig{Speed: 1.0, ReplayTimes: 1})
	require.ErrorIs(t, err, ErrEmptyRecording)
	assert.Equal(t, 0, exec.count())
	assert.False(t, p.IsPlaying())
}

func TestStartRejectsInvalidSpeed(t *testing.T) {
	exec := &fakeExecutor{}
	p := NewPlayer(exec, zap.NewNop())
	rec := newTestRecording([]model.Event{{Type: model.EventMove, X: 1, Y: 1}})

	for _, speed := range []float64{0, -1.5} {
		err := p.Start(rec, ReplayConfig{Speed: speed, ReplayTimes: 1})
		require.ErrorIs(t, err, ErrInvalidSpeed)
	}
	assert.Equal(t, 0, exec.count())
}

func TestStartRejectsInvalidTimes(t *testing.T) {
	exec := &fakeExecutor{}
	p := NewPlayer(exec, zap.NewNop())
	rec := newTestRecording([]model.Event{{Type: model.EventMove}})

	err := p.Start(rec, ReplayConfig{Speed: 1.0, ReplayTimes: 0})
	require.ErrorIs(t, err, ErrInvalidDuration)
	assert.Equal(t, 0, exec.count())
}

// 规格示例：move/click/click 按原始节奏回放一次
func TestCountBasedPacingAndOrder(t *testing.T) {
	events := []model.Event{
		{Type: model.EventMove, X: 10, Y: 10, Timestamp: 0.0},
		{Type: model.EventClick, X: 10, Y: 10, Button: model.ButtonLeft, Pressed: true, Timestamp: 0.5},
		{Type: model.EventClick, X: 10, Y: 10, Button: model.ButtonLeft, Pressed: false, Timestamp: 0.6},
	}
	exec := &fakeExecutor{}
	p := NewPlayer(exec, zap.NewNop())
	notes := &notifications{}
	notes.attach(p)

	start := time.Now()
	require.NoError(t, p.Start(newTestRecording(events), ReplayConfig{Speed: 1.0, ReplayTimes: 1}))
	waitDone(t, p)
	elapsed := time.Since(start)

	calls := exec.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, model.EventMove, calls[0].event.Type)
	assert.True(t, calls[1].event.Pressed)
	assert.False(t, calls[2].event.Pressed)

	// 总时长约等于最后一个事件的时间戳
	assert.GreaterOrEqual(t, elapsed, 550*time.Millisecond)
	assert.Less(t, elapsed, 1200*time.Millisecond)

	// 各事件的墙钟偏移接近录制时间戳
	offset1 := calls[1].at.Sub(calls[0].at)
	assert.GreaterOrEqual(t, offset1, 400*time.Millisecond)
	assert.Less(t, offset1, 800*time.Millisecond)

	assert.Equal(t, 1, notes.finishedCount())
	assert.Empty(t, notes.eventErrs)
}

func TestSpeedScalingHalvesDuration(t *testing.T) {
	events := []model.Event{
		{Type: model.EventMove, Timestamp: 0.0},
		{Type: model.EventMove, Timestamp: 0.2},
		{Type: model.EventMove, Timestamp: 0.4},
	}

	run := func(speed float64) time.Duration {
		exec := &fakeExecutor{}
		p := NewPlayer(exec, zap.NewNop())
		start := time.Now()
		require.NoError(t, p.Start(newTestRecording(events), ReplayConfig{Speed: speed, ReplayTimes: 1}))
		waitDone(t, p)
		require.Equal(t, 3, exec.count())
		return time.Since(start)
	}

	normal := run(1.0)
	double := run(2.0)

	assert.GreaterOrEqual(t, normal, 380*time.Millisecond)
	assert.GreaterOrEqual(t, double, 180*time.Millisecond)
	assert.Less(t, double, normal)
}

func TestCountBasedRepeatsWithLatency(t *testing.T) {
	events := []model.Event{
		{Type: model.EventMove, Timestamp: 0.0},
		{Type: model.EventMove, Timestamp: 0.01},
	}
	exec := &fakeExecutor{}
	p := NewPlayer(exec, zap.NewNop())
	notes := &notifications{}
	notes.attach(p)

	start := time.Now()
	require.NoError(t, p.Start(newTestRecording(events), ReplayConfig{
		Speed:         1.0,
		ReplayTimes:   3,
		ReplayLatency: 0.1,
	}))
	waitDone(t, p)
	elapsed := time.Since(start)

	// 完整序列恰好执行 3 次，顺序不变
	calls := exec.snapshot()
	require.Len(t, calls, 6)
	for i, call := range calls {
		assert.Equal(t, events[i%2].Timestamp, call.event.Timestamp)
	}

	// 停顿只出现在两次回放之间：2 次停顿，最后一次之后没有
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 800*time.Millisecond)

	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, notes.snapshotRuns())
	assert.Equal(t, 1, notes.finishedCount())
}

func TestCountBasedProgressFormula(t *testing.T) {
	events := []model.Event{
		{Type: model.EventMove, Timestamp: 0},
		{Type: model.EventMove, Timestamp: 0},
		{Type: model.EventMove, Timestamp: 0},
		{Type: model.EventMove, Timestamp: 0},
	}
	exec := &fakeExecutor{}
	p := NewPlayer(exec, zap.NewNop())
	notes := &notifications{}
	notes.attach(p)

	require.NoError(t, p.Start(newTestRecording(events), ReplayConfig{Speed: 1.0, ReplayTimes: 2}))
	waitDone(t, p)

	want := []int{0, 12, 25, 37, 50, 62, 75, 87}
	assert.Equal(t, want, notes.snapshotProgress())
}

func TestCancelMidRunStopsQuickly(t *testing.T) {
	events := []model.Event{
		{Type: model.EventMove, Timestamp: 0.0},
		{Type: model.EventMove, Timestamp: 0.03},
		{Type: model.EventMove, Timestamp: 10.0},
	}
	exec := &fakeExecutor{}
	p := NewPlayer(exec, zap.NewNop())
	notes := &notifications{}
	notes.attach(p)

	require.NoError(t, p.Start(newTestRecording(events), ReplayConfig{Speed: 1.0, ReplayTimes: 1}))

	require.Eventually(t, func() bool { return exec.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	cancelAt := time.Now()
	require.NoError(t, p.Stop())
	waitDone(t, p)

	// 取消在一次睡眠内生效，不会等满 10 秒
	assert.Less(t, time.Since(cancelAt), 500*time.Millisecond)
	assert.Equal(t, 2, exec.count())
	assert.Equal(t, 0, notes.finishedCount())
	assert.False(t, p.IsPlaying())
}

func TestCancelDuringCountdown(t *testing.T) {
	events := []model.Event{{Type: model.EventMove, Timestamp: 0}}
	exec := &fakeExecutor{}
	p := NewPlayer(exec, zap.NewNop())
	notes := &notifications{}
	notes.attach(p)

	require.NoError(t, p.Start(newTestRecording(events), ReplayConfig{
		Speed:       1.0,
		DelayStart:  10,
		ReplayTimes: 1,
	}))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, p.Stop())
	waitDone(t, p)

	assert.Equal(t, 0, exec.count())
	assert.Equal(t, 0, notes.finishedCount())
}

func TestEventErrorsDoNotAbortRun(t *testing.T) {
	events := []model.Event{
		{Type: model.EventMove, Timestamp: 0},
		{Type: model.EventClick, Button: model.ButtonLeft, Pressed: true, Timestamp: 0},
		{Type: model.EventMove, Timestamp: 0},
	}
	execErr := errors.New("injection failed")
	exec := &fakeExecutor{
		fail: func(index int, e *model.Event) error {
			if index == 1 {
				return execErr
			}
			return nil
		},
	}
	p := NewPlayer(exec, zap.NewNop())
	notes := &notifications{}
	notes.attach(p)

	require.NoError(t, p.Start(newTestRecording(events), ReplayConfig{Speed: 1.0, ReplayTimes: 1}))
	waitDone(t, p)

	// 单个事件失败只通知，回放继续并正常结束
	assert.Equal(t, 3, exec.count())
	assert.Equal(t, 1, notes.finishedCount())
	require.Len(t, notes.eventErrs, 1)
	assert.ErrorIs(t, notes.eventErrs[0], execErr)
}

func TestTimeBasedStaysWithinBudget(t *testing.T) {
	events := []model.Event{
		{Type: model.EventMove, Timestamp: 0.0},
		{Type: model.EventMove, Timestamp: 0.02},
		{Type: model.EventMove, Timestamp: 0.04},
	}
	exec := &fakeExecutor{}
	p := NewPlayer(exec, zap.NewNop())
	notes := &notifications{}
	notes.attach(p)

	budget := 300 * time.Millisecond
	start := time.Now()
	require.NoError(t, p.Start(newTestRecording(events), ReplayConfig{
		Speed:         1.0,
		ReplayHours:   budget.Hours(),
		ReplayLatency: 0.02,
	}))
	waitDone(t, p)
	elapsed := time.Since(start)

	// 预算耗尽按正常结束处理，总时长不超过预算加一次回放的时长
	assert.Equal(t, 1, notes.finishedCount())
	assert.Less(t, elapsed, budget+400*time.Millisecond)

	// 至少完整跑了几轮，每轮通知都带时间模式哨兵值
	runs := notes.snapshotRuns()
	require.GreaterOrEqual(t, len(runs), 2)
	for i, run := range runs {
		assert.Equal(t, i+1, run[0])
		assert.Equal(t, TimeBasedTotal, run[1])
	}

	// 进度按预算消耗比例计算并截断在 [0,100]
	for _, pct := range notes.snapshotProgress() {
		assert.GreaterOrEqual(t, pct, 0)
		assert.LessOrEqual(t, pct, 100)
	}

	assert.GreaterOrEqual(t, exec.count(), len(events)*2)
}

func TestTimeBasedSkipsPartialFinalRun(t *testing.T) {
	// 单次回放需要 0.2 秒，预算只有 0.25 秒：第二轮不应开始
	events := []model.Event{
		{Type: model.EventMove, Timestamp: 0.0},
		{Type: model.EventMove, Timestamp: 0.2},
	}
	exec := &fakeExecutor{}
	p := NewPlayer(exec, zap.NewNop())
	notes := &notifications{}
	notes.attach(p)

	require.NoError(t, p.Start(newTestRecording(events), ReplayConfig{
		Speed:       1.0,
		ReplayHours: (250 * time.Millisecond).Hours(),
	}))
	waitDone(t, p)

	assert.Equal(t, 1, notes.finishedCount())
	assert.Len(t, notes.snapshotRuns(), 1)
	assert.Equal(t, len(events), exec.count())
}

func TestRestartAfterStopDoesNotLeakOldRun(t *testing.T) {
	// 第一次回放卡在第三个事件的长等待上，停止后立刻开始第二次回放
	first := []model.Event{
		{Type: model.EventMove, X: 1, Timestamp: 0.0},
		{Type: model.EventMove, X: 1, Timestamp: 0.03},
		{Type: model.EventMove, X: 1, Timestamp: 10.0},
	}
	second := []model.Event{
		{Type: model.EventMove, X: 2, Timestamp: 0.0},
		{Type: model.EventMove, X: 2, Timestamp: 0.05},
	}

	exec := &fakeExecutor{}
	p := NewPlayer(exec, zap.NewNop())
	notes := &notifications{}
	notes.attach(p)

	require.NoError(t, p.Start(newTestRecording(first), ReplayConfig{Speed: 1.0, ReplayTimes: 1}))
	require.Eventually(t, func() bool { return exec.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop())
	require.NoError(t, p.Start(newTestRecording(second), ReplayConfig{Speed: 1.0, ReplayTimes: 1}))
	waitDone(t, p)

	// 给旧回放 goroutine 的收尾留出时间
	time.Sleep(100 * time.Millisecond)

	// 旧回放不再执行任何事件，新回放完整跑完
	var firstCalls, secondCalls int
	for _, call := range exec.snapshot() {
		switch call.event.X {
		case 1:
			firstCalls++
		case 2:
			secondCalls++
		}
	}
	assert.Equal(t, 2, firstCalls)
	assert.Equal(t, len(second), secondCalls)

	// 只有新回放发 finished，且播放状态没有被旧收尾覆盖
	assert.Equal(t, 1, notes.finishedCount())
	assert.False(t, p.IsPlaying())
}

func TestCancelIsDistinctFromSecondStart(t *testing.T) {
	events := []model.Event{{Type: model.EventMove, Timestamp: 5.0}}
	exec := &fakeExecutor{}
	p := NewPlayer(exec, zap.NewNop())

	require.NoError(t, p.Start(newTestRecording(events), ReplayConfig{Speed: 1.0, ReplayTimes: 1}))
	require.True(t, p.IsPlaying())

	// 回放进行中不允许再次启动
	err := p.Start(newTestRecording(events), ReplayConfig{Speed: 1.0, ReplayTimes: 1})
	require.Error(t, err)

	require.NoError(t, p.Stop())
	waitDone(t, p)

	// 结束后可以重新启动
	require.NoError(t, p.Start(newTestRecording([]model.Event{{Type: model.EventMove}}), ReplayConfig{Speed: 1.0, ReplayTimes: 1}))
	waitDone(t, p)
}
