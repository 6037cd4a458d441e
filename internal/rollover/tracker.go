package rollover

import (
	"context"
	"errors"
	"fmt"
	"futureflow/internal/contract"
	"futureflow/internal/model"
	"futureflow/internal/position"
	"futureflow/internal/trade"
	"reflect"

	"go.uber.org/zap"
)

// Settings 换月参数
type Settings struct {
	TradeSwitchDays   int   // 持仓时距交割日小于等于该天数强制平仓换月
	NoTradeSwitchDays int   // 空仓时距交割日小于该天数直接换月
	Months            []int // 主力合约月份
}

// ErrPositionNotOpen 手动平仓时合约没有持仓
var ErrPositionNotOpen = errors.New("position not open")

// Factory 为合约创建生命周期，包括K线缓存
type Factory func(ctx context.Context, state *model.PositionState) (*position.Lifecycle, error)

// Tracker 主连合约的当前/下一合约，负责换月
// 与其管理的两个 Lifecycle 一样只能由一个 goroutine 驱动
type Tracker struct {
	state    *model.TrackingState
	current  *position.Lifecycle
	next     *position.Lifecycle
	factory  Factory
	recorder *trade.Recorder
	settings Settings
	log      *zap.SugaredLogger
}

func NewTracker(ctx context.Context, state *model.TrackingState, factory Factory, recorder *trade.Recorder,
	settings Settings, log *zap.SugaredLogger) (*Tracker, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	t := &Tracker{
		state:    state.Clone(),
		factory:  factory,
		recorder: recorder,
		settings: settings,
		log:      log.With("continuous_id", state.ContinuousID),
	}
	var err error
	if t.current, err = factory(ctx, t.state.Current); err != nil {
		return nil, fmt.Errorf("create lifecycle %s: %w", t.state.Current.Symbol, err)
	}
	if t.next, err = factory(ctx, t.state.Next); err != nil {
		return nil, fmt.Errorf("create lifecycle %s: %w", t.state.Next.Symbol, err)
	}
	return t, nil
}

func (t *Tracker) ContinuousID() string {
	return t.state.ContinuousID
}

// State 跟踪状态快照，合约状态取自生命周期
func (t *Tracker) State() *model.TrackingState {
	s := t.state.Clone()
	s.Current = t.current.State()
	s.Next = t.next.State()
	return s
}

func (t *Tracker) Current() *position.Lifecycle {
	return t.current
}

func (t *Tracker) Next() *position.Lifecycle {
	return t.next
}

// Lifecycle 按合约代码查找
func (t *Tracker) Lifecycle(symbol string) (*position.Lifecycle, bool) {
	switch symbol {
	case t.current.Symbol():
		return t.current, true
	case t.next.Symbol():
		return t.next, true
	}
	return nil, false
}

// MaybeSwitch 根据当前合约剩余交割天数决定是否换月
// tick 必须是当前合约的行情；有未完成订单时推迟到下一次
func (t *Tracker) MaybeSwitch(ctx context.Context, tick model.Tick) (bool, error) {
	if t.current.Pending() {
		return false, nil
	}
	erd := tick.ExpireRestDays
	switch t.current.Status() {
	case model.Open:
		if erd > t.settings.TradeSwitchDays {
			return false, nil
		}
		t.log.Infow("rollover with position", "symbol", t.current.Symbol(), "expire_rest_days", erd)
		exec, err := t.current.ForceClose(ctx, tick, model.CloseRollover, model.ReasonRollover)
		if errors.Is(err, position.ErrOrderPending) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if exec == nil {
			// 平仓单未成交，等待下一次行情
			return false, nil
		}
		if t.current.Status() != model.Closed {
			// 部分成交：先落库已平部分，剩余手数下一次行情继续平
			if _, err := t.recorder.Record(ctx, t.state.ContinuousID, t.current.State(), *exec); err != nil {
				return false, err
			}
			t.log.Warnw("rollover close partially filled", "symbol", t.current.Symbol(),
				"filled", exec.Volume, "rest", t.current.State().CarryingVolume)
			return false, nil
		}
		return true, t.promote(ctx, exec, tick)
	default:
		if erd >= t.settings.NoTradeSwitchDays {
			return false, nil
		}
		t.log.Infow("rollover without position", "symbol", t.current.Symbol(), "status", t.current.Status().String(), "expire_rest_days", erd)
		return true, t.promote(ctx, nil, tick)
	}
}

// promote 先持久化换月结果，成功后再替换内存中的合约
func (t *Tracker) promote(ctx context.Context, exec *model.Execution, tick model.Tick) error {
	old := t.current.State()
	nextSymbol, err := contract.Next(t.next.Symbol(), t.settings.Months)
	if err != nil {
		return model.Fatal(t.state.ContinuousID, fmt.Errorf("next contract after %s: %w", t.next.Symbol(), err))
	}

	updated := t.State()
	updated.Current = t.next.State()
	updated.Next = model.NewPositionState(t.state.Variant, nextSymbol, t.state.Direction)
	updated.LastModified = tick.Time
	if err := updated.Validate(); err != nil {
		return model.Fatal(t.state.ContinuousID, err)
	}

	nextLife, err := t.factory(ctx, updated.Next)
	if err != nil {
		return fmt.Errorf("create lifecycle %s: %w", nextSymbol, err)
	}
	if _, err := t.recorder.RecordRollover(ctx, updated, old, exec); err != nil {
		return err
	}

	t.current, t.next = t.next, nextLife
	t.state = updated
	t.log.Infow("rollover done", "from", old.Symbol, "current", t.current.Symbol(), "next", t.next.Symbol())
	return nil
}

// Step 依次驱动当前与下一合约，每次成交和状态变化都会持久化
// ticks 以合约代码为键，没有行情的合约跳过
func (t *Tracker) Step(ctx context.Context, ticks map[string]model.Tick) error {
	for _, l := range []*position.Lifecycle{t.current, t.next} {
		tick, ok := ticks[l.Symbol()]
		if !ok {
			continue
		}
		if err := t.stepOne(ctx, l, tick); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) stepOne(ctx context.Context, l *position.Lifecycle, tick model.Tick) error {
	before := l.State()
	execs, stepErr := l.Step(ctx, tick)
	for _, exec := range execs {
		if _, err := t.recorder.Record(ctx, t.state.ContinuousID, l.State(), exec); err != nil {
			return err
		}
	}
	if len(execs) == 0 && !reflect.DeepEqual(before, l.State()) {
		if err := t.recorder.SavePosition(ctx, t.state.ContinuousID, l.State()); err != nil {
			return err
		}
	}
	if stepErr != nil {
		if model.IsFatal(stepErr) {
			return stepErr
		}
		// 下单失败、手数为零等情况在下一次行情重试
		t.log.Warnw("step failed", "symbol", l.Symbol(), "error", stepErr)
	}
	return nil
}

// Close 人工平仓，symbol 为空时平当前合约
func (t *Tracker) Close(ctx context.Context, symbol string, tick model.Tick) error {
	if symbol == "" {
		symbol = t.current.Symbol()
	}
	l, ok := t.Lifecycle(symbol)
	if !ok {
		return fmt.Errorf("%s not tracked by %s", symbol, t.state.ContinuousID)
	}
	if l.Status() != model.Open {
		return fmt.Errorf("%w: %s is %s", ErrPositionNotOpen, symbol, l.Status().String())
	}
	exec, err := l.ForceClose(ctx, tick, model.CloseManual, model.ReasonManual)
	if err != nil {
		return err
	}
	if exec == nil {
		return nil
	}
	_, err = t.recorder.Record(ctx, t.state.ContinuousID, l.State(), *exec)
	return err
}
