package position

import (
	"context"
	"errors"
	"futureflow/internal/condition"
	"futureflow/internal/contract"
	"futureflow/internal/exchange"
	"futureflow/internal/kline"
	"futureflow/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const symbol = "SHFE.rb2410"

type mockEvaluator struct {
	mock.Mock
}

func (m *mockEvaluator) Evaluate(tf model.Timeframe, dir model.Direction, variant model.StrategyVariant,
	cache *kline.Cache, upstream model.OpenConditionSet) model.ConditionMatch {
	args := m.Called(tf, dir, variant, cache, upstream)
	return args.Get(0).(model.ConditionMatch)
}

func (m *mockEvaluator) codes(daily, h3 int) {
	for tf, code := range map[model.Timeframe]int{
		model.Daily:    daily,
		model.Hour3:    h3,
		model.Minute30: 1,
		model.Minute5:  1,
	} {
		m.On("Evaluate", tf, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(model.ConditionMatch{Timeframe: tf, Code: code})
	}
}

func settings() Settings {
	return Settings{
		Multiplier:   10,
		OpenPosScale: 0.2,
		Scales: Scales{
			Base:          0.01,
			StopLoss:      2,
			ProfitStart1:  3,
			ProfitStart2:  2,
			PromoteScale:  4,
			PromoteTarget: 1,
			SecondTarget:  3,
		},
	}
}

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, contract.ChinaZone)
	if err != nil {
		panic(err)
	}
	return t
}

func tick(price float64, ts string) model.Tick {
	return model.Tick{
		Time:      at(ts),
		Quote:     model.Quote{Symbol: symbol, LastPrice: price, BidPrice1: price - 1, AskPrice1: price + 1},
		Available: 1e6,
	}
}

type fixture struct {
	ex    *exchange.SimulatedExchange
	eval  *mockEvaluator
	cache *kline.Cache
	life  *Lifecycle
}

func newFixture(t *testing.T, state *model.PositionState, opts ...exchange.SimOption) *fixture {
	f := &fixture{
		ex:    exchange.NewSimulatedExchange(1e6, opts...),
		eval:  &mockEvaluator{},
		cache: kline.NewCache(symbol, kline.MainParams, 0),
	}
	var gate Gate = condition.NewMainLong(condition.DefaultOptions())
	if state.Direction == model.Short {
		gate = condition.NewMainShort(condition.DefaultOptions())
	}
	f.life = NewLifecycle(state, f.cache, f.eval, gate, f.ex, settings(), zaptest.NewLogger(t).Sugar())
	return f
}

func (f *fixture) step(t *testing.T, price float64, ts string) []model.Execution {
	t.Helper()
	f.ex.SetQuote(model.Quote{Symbol: symbol, LastPrice: price})
	execs, err := f.life.Step(context.Background(), tick(price, ts))
	require.NoError(t, err)
	return execs
}

func openState(dir model.Direction, policy int, volume int) *model.PositionState {
	s := model.NewPositionState(model.Primary, symbol, dir)
	s.Status = model.Open
	s.CarryingVolume = volume
	s.OpenPrice = 4000
	s.TakeProfitPolicy = policy
	sc := settings().Scales
	s.StopLossPrice = CalcPrice(4000, sc.Base, sc.StopLoss, dir == model.Short)
	s.TakeProfitAnchor = CalcPrice(4000, sc.Base, sc.ProfitStart(policy), dir == model.Long)
	return s
}

func TestSizeAndCalcPrice(t *testing.T) {
	assert.Equal(t, 5, Size(1e6, 0.2, 10, 4000))
	assert.Equal(t, 4, Size(1e6, 0.2, 10, 4100))
	assert.Equal(t, 0, Size(1e6, 0.2, 10, 0))
	assert.Equal(t, 0, Size(1000, 0.2, 10, 4000))

	assert.Equal(t, 3920.0, CalcPrice(4000, 0.01, 2, false))
	assert.Equal(t, 4120.0, CalcPrice(4000, 0.01, 3, true))
	assert.Equal(t, 101.01, CalcPrice(100.005, 0.01, 1, true))
}

func TestLifecycle_GatingStopsAtFirstMiss(t *testing.T) {
	f := newFixture(t, model.NewPositionState(model.Primary, symbol, model.Long))
	f.eval.codes(0, 1)

	execs := f.step(t, 4000, "2024-05-06 10:00")
	assert.Empty(t, execs)
	assert.Equal(t, model.Idle, f.life.Status())
	f.eval.AssertNumberOfCalls(t, "Evaluate", 1)
	assert.Empty(t, f.ex.Orders())
}

func TestLifecycle_Open(t *testing.T) {
	f := newFixture(t, model.NewPositionState(model.Primary, symbol, model.Long))
	f.eval.codes(1, 1)

	execs := f.step(t, 4000, "2024-05-06 10:00")
	require.Len(t, execs, 1)
	assert.Equal(t, model.EventOpen, execs[0].Kind)
	assert.Equal(t, 5, execs[0].Volume)
	assert.Equal(t, 4000.0, execs[0].Price)

	s := f.life.State()
	assert.Equal(t, model.Open, s.Status)
	assert.Equal(t, 5, s.CarryingVolume)
	assert.Equal(t, 3920.0, s.StopLossPrice)
	assert.Equal(t, 4120.0, s.TakeProfitAnchor)
	assert.Equal(t, 1, s.TakeProfitPolicy)
	assert.Equal(t, model.ReasonStopLoss, s.StopLossReason)
	assert.Equal(t, 1, s.OpenConditions.Code(model.Daily))
	assert.Len(t, s.OpenConditions, 4)
	f.eval.AssertNumberOfCalls(t, "Evaluate", 4)
}

func TestLifecycle_OpenOnOpenIsFatal(t *testing.T) {
	f := newFixture(t, openState(model.Long, 1, 5))
	_, err := f.life.TryOpen(context.Background(), tick(4000, "2024-05-06 10:00"))
	require.Error(t, err)
	assert.True(t, model.IsFatal(err))
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestLifecycle_OpenOnClosedIsNoop(t *testing.T) {
	s := model.NewPositionState(model.Primary, symbol, model.Long)
	s.Status = model.Closed
	f := newFixture(t, s)
	exec, err := f.life.TryOpen(context.Background(), tick(4000, "2024-05-06 10:00"))
	require.NoError(t, err)
	assert.Nil(t, exec)
	f.eval.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycle_InvalidSize(t *testing.T) {
	f := newFixture(t, model.NewPositionState(model.Primary, symbol, model.Long))
	f.eval.codes(1, 1)

	tk := tick(4000, "2024-05-06 10:00")
	tk.Available = 100
	_, err := f.life.Step(context.Background(), tk)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidSize)
	assert.False(t, model.IsFatal(err))
	assert.Equal(t, model.Idle, f.life.Status())
}

func TestLifecycle_ApprovalDenied(t *testing.T) {
	state := model.NewPositionState(model.Exploratory, symbol, model.Long)
	f := newFixture(t, state)
	f.eval.codes(1, 1)
	var asked int
	WithApprover(func(ctx context.Context, s *model.PositionState, conds model.OpenConditionSet) (bool, error) {
		asked++
		return false, nil
	})(f.life)

	execs := f.step(t, 4000, "2024-05-06 10:00")
	assert.Empty(t, execs)
	assert.Equal(t, 1, asked)
	assert.Equal(t, model.Idle, f.life.Status())
}

func TestLifecycle_StopLoss(t *testing.T) {
	s := openState(model.Long, 1, 5)
	s.OpenPrice, s.StopLossPrice, s.TakeProfitAnchor = 100, 95, 110
	f := newFixture(t, s)

	assert.Empty(t, f.step(t, 96, "2024-05-06 10:00"))

	execs := f.step(t, 94.5, "2024-05-06 10:01")
	require.Len(t, execs, 1)
	assert.Equal(t, model.EventClose, execs[0].Kind)
	assert.Equal(t, model.CloseStopLoss, execs[0].CloseType)
	assert.Equal(t, model.ReasonStopLoss, execs[0].Reason)
	assert.Equal(t, 5, execs[0].Volume)

	st := f.life.State()
	assert.Equal(t, model.Closed, st.Status)
	assert.Zero(t, st.CarryingVolume)
	assert.False(t, st.CloseTime.IsZero())

	// 已平仓后不再处理
	assert.Empty(t, f.step(t, 90, "2024-05-06 10:02"))
}

func TestLifecycle_ShortStopLossMirrored(t *testing.T) {
	f := newFixture(t, model.NewPositionState(model.Primary, symbol, model.Short))
	f.eval.codes(1, 1)

	execs := f.step(t, 4000, "2024-05-06 10:00")
	require.Len(t, execs, 1)
	s := f.life.State()
	assert.Equal(t, 4080.0, s.StopLossPrice)
	assert.Equal(t, 3880.0, s.TakeProfitAnchor)

	assert.Empty(t, f.step(t, 4050, "2024-05-06 10:01"))
	execs = f.step(t, 4085, "2024-05-06 10:02")
	require.Len(t, execs, 1)
	assert.Equal(t, model.CloseStopLoss, execs[0].CloseType)
	assert.Equal(t, model.Closed, f.life.Status())
}

func TestLifecycle_StagedTakeProfit(t *testing.T) {
	f := newFixture(t, openState(model.Long, 4, 10))
	require.Equal(t, 4080.0, f.life.State().TakeProfitAnchor)

	execs := f.step(t, 4090, "2024-05-06 10:00")
	require.Len(t, execs, 1)
	assert.Equal(t, 5, execs[0].Volume)
	assert.Equal(t, model.CloseTakeProfit, execs[0].CloseType)

	s := f.life.State()
	assert.Equal(t, model.Open, s.Status)
	assert.Equal(t, 5, s.CarryingVolume)
	assert.Equal(t, 2, s.TakeProfitStage)
	assert.True(t, s.HasEnteredTakeProfit)
	assert.Equal(t, 4000.0, s.StopLossPrice)
	assert.Equal(t, model.ReasonTakeProfit, s.StopLossReason)

	assert.Empty(t, f.step(t, 4100, "2024-05-06 10:01"))

	execs = f.step(t, 4125, "2024-05-06 10:02")
	require.Len(t, execs, 1)
	assert.Equal(t, 5, execs[0].Volume)
	assert.Equal(t, model.Closed, f.life.Status())
}

func TestLifecycle_StagedTakeProfitSingleLot(t *testing.T) {
	f := newFixture(t, openState(model.Long, 4, 1))

	execs := f.step(t, 4090, "2024-05-06 10:00")
	require.Len(t, execs, 1)
	assert.Equal(t, 1, execs[0].Volume)
	assert.Equal(t, model.Closed, f.life.Status())
}

func TestLifecycle_PromoteStop(t *testing.T) {
	f := newFixture(t, openState(model.Long, 1, 5))

	assert.Empty(t, f.step(t, 4130, "2024-05-06 10:00"))
	s := f.life.State()
	assert.True(t, s.HasEnteredTakeProfit)
	assert.False(t, s.HasRaisedStopLoss)
	assert.Equal(t, 3920.0, s.StopLossPrice)

	assert.Empty(t, f.step(t, 4170, "2024-05-06 10:01"))
	s = f.life.State()
	assert.True(t, s.HasRaisedStopLoss)
	assert.Equal(t, 4040.0, s.StopLossPrice)
	assert.Equal(t, model.ReasonTrailingStop, s.StopLossReason)

	execs := f.step(t, 4030, "2024-05-06 10:02")
	require.Len(t, execs, 1)
	assert.Equal(t, model.CloseStopLoss, execs[0].CloseType)
	assert.Equal(t, model.ReasonTrailingStop, execs[0].Reason)
}

func TestLifecycle_ShortPromoteStopNeverRises(t *testing.T) {
	f := newFixture(t, openState(model.Short, 1, 5))
	require.Equal(t, 4080.0, f.life.State().StopLossPrice)

	assert.Empty(t, f.step(t, 3880, "2024-05-06 10:00"))
	s := f.life.State()
	assert.True(t, s.HasEnteredTakeProfit)
	assert.False(t, s.HasRaisedStopLoss)
	assert.Equal(t, 4080.0, s.StopLossPrice)

	assert.Empty(t, f.step(t, 3835, "2024-05-06 10:01"))
	s = f.life.State()
	assert.True(t, s.HasRaisedStopLoss)
	assert.Equal(t, 3960.0, s.StopLossPrice)
	assert.Equal(t, model.ReasonTrailingStop, s.StopLossReason)

	// 反向波动不会抬高空头止损
	assert.Empty(t, f.step(t, 3920, "2024-05-06 10:02"))
	assert.Equal(t, 3960.0, f.life.State().StopLossPrice)
	assert.Empty(t, f.step(t, 3800, "2024-05-06 10:03"))
	assert.Equal(t, 3960.0, f.life.State().StopLossPrice)

	execs := f.step(t, 3960, "2024-05-06 10:04")
	require.Len(t, execs, 1)
	assert.Equal(t, 5, execs[0].Volume)
	assert.Equal(t, model.CloseStopLoss, execs[0].CloseType)
	assert.Equal(t, model.ReasonTrailingStop, execs[0].Reason)
	assert.Equal(t, model.Closed, f.life.Status())
}

func TestLifecycle_FinalWindowTakeProfit(t *testing.T) {
	s := openState(model.Long, 1, 5)
	s.OpenPrice, s.StopLossPrice, s.TakeProfitAnchor = 4000, 4000, 4100
	s.HasEnteredTakeProfit, s.HasRaisedStopLoss = true, true
	f := newFixture(t, s)

	// 日线持续下跌，ema9 < ema22 < ema60
	bars := make([]model.Bar, 80)
	start := at("2024-01-01 15:00")
	for i := range bars {
		c := 6000 - float64(i)*10
		bars[i] = model.Bar{Timestamp: start.AddDate(0, 0, i), Open: c + 5, High: c + 10, Low: c - 10, Close: c}
	}
	require.NoError(t, f.cache.Load(model.Daily, bars))
	daily, ok := f.cache.LastClosed(model.Daily)
	require.True(t, ok)
	require.Greater(t, daily.EmaLong, 5300.0)
	require.Less(t, daily.EmaShort, daily.EmaMid)

	assert.Empty(t, f.step(t, 5300, "2024-05-06 14:50"))
	assert.Equal(t, model.Open, f.life.Status())

	execs := f.step(t, 5300, "2024-05-06 14:56")
	require.Len(t, execs, 1)
	assert.Equal(t, model.CloseTakeProfit, execs[0].CloseType)
	assert.Equal(t, model.ReasonTakeProfit, execs[0].Reason)
	assert.Equal(t, model.Closed, f.life.Status())
}

func TestLifecycle_ForceClose(t *testing.T) {
	ctx := context.Background()

	idle := newFixture(t, model.NewPositionState(model.Primary, symbol, model.Long))
	exec, err := idle.life.ForceClose(ctx, tick(4000, "2024-05-06 10:00"), model.CloseRollover, model.ReasonRollover)
	require.NoError(t, err)
	assert.Nil(t, exec)

	open := newFixture(t, openState(model.Long, 1, 5))
	open.ex.SetQuote(model.Quote{Symbol: symbol, LastPrice: 4010})
	exec, err = open.life.ForceClose(ctx, tick(4010, "2024-05-06 10:00"), model.CloseRollover, model.ReasonRollover)
	require.NoError(t, err)
	require.NotNil(t, exec)
	assert.Equal(t, model.CloseRollover, exec.CloseType)
	assert.Equal(t, 5, exec.Volume)
	assert.Equal(t, model.Closed, open.life.Status())

	_, err = open.life.ForceClose(ctx, tick(4010, "2024-05-06 10:01"), model.CloseManual, model.ReasonManual)
	assert.True(t, model.IsFatal(err))
}

func TestLifecycle_PendingOrder(t *testing.T) {
	f := newFixture(t, model.NewPositionState(model.Primary, symbol, model.Long), exchange.WithPendingOrders())
	f.eval.codes(1, 1)
	f.ex.SetQuote(model.Quote{Symbol: symbol, LastPrice: 4000})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	execs, err := f.life.Step(ctx, tick(4000, "2024-05-06 10:00"))
	cancel()
	require.NoError(t, err)
	assert.Empty(t, execs)
	assert.True(t, f.life.Pending())
	assert.Equal(t, model.Idle, f.life.Status())

	_, err = f.life.ForceClose(context.Background(), tick(4000, "2024-05-06 10:00"), model.CloseManual, model.ReasonManual)
	assert.NoError(t, err, "idle position ignores force close")

	orders := f.ex.Orders()
	require.Len(t, orders, 1)
	require.NoError(t, f.ex.Fill(orders[0].OrderID, 4002))

	execs = f.step(t, 4005, "2024-05-06 10:01")
	require.Len(t, execs, 1)
	assert.Equal(t, model.EventOpen, execs[0].Kind)
	assert.False(t, f.life.Pending())
	assert.Equal(t, 4002.0, f.life.State().OpenPrice)
	assert.Equal(t, model.Open, f.life.Status())
}

func TestLifecycle_PendingBlocksForceClose(t *testing.T) {
	f := newFixture(t, openState(model.Long, 1, 5), exchange.WithPendingOrders())
	f.ex.SetQuote(model.Quote{Symbol: symbol, LastPrice: 3900})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err := f.life.Step(ctx, tick(3900, "2024-05-06 10:00"))
	cancel()
	require.NoError(t, err)
	require.True(t, f.life.Pending())

	_, err = f.life.ForceClose(context.Background(), tick(3900, "2024-05-06 10:01"), model.CloseRollover, model.ReasonRollover)
	assert.True(t, errors.Is(err, ErrOrderPending))
}
