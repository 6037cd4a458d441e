package position

import (
	"context"
	"errors"
	"fmt"
	"futureflow/internal/exchange"
	"futureflow/internal/kline"
	"futureflow/internal/model"
	"time"

	"go.uber.org/zap"
)

// ErrOrderPending 上一笔订单还未结束
var ErrOrderPending = errors.New("order pending")

// Evaluator 条件判断
type Evaluator interface {
	Evaluate(tf model.Timeframe, dir model.Direction, variant model.StrategyVariant,
		cache *kline.Cache, upstream model.OpenConditionSet) model.ConditionMatch
}

// Gate 开仓需要逐级满足的周期，以及开仓条件对应的止盈策略
type Gate interface {
	Timeframes() []model.Timeframe
	TakeProfitPolicy(set model.OpenConditionSet) int
}

// Approver 开仓前的人工确认，返回 false 时不开仓
type Approver func(ctx context.Context, state *model.PositionState, conds model.OpenConditionSet) (bool, error)

type pendingOrder struct {
	orderID   string
	offset    model.Offset
	closeType model.CloseType
	reason    string
	conds     model.OpenConditionSet
	nextStage int // 成交后切换到的止盈阶段，0 表示不变
}

// Lifecycle 单个合约+方向的交易状态机：未开始 -> 交易中 -> 已平仓
// 同一实例只能由一个 goroutine 驱动
type Lifecycle struct {
	state    *model.PositionState
	cache    *kline.Cache
	eval     Evaluator
	gate     Gate
	gw       exchange.OrderGateway
	settings Settings
	approve  Approver
	pending  *pendingOrder
	log      *zap.SugaredLogger
}

type Option func(*Lifecycle)

func WithApprover(a Approver) Option {
	return func(l *Lifecycle) { l.approve = a }
}

func NewLifecycle(state *model.PositionState, cache *kline.Cache, eval Evaluator, gate Gate,
	gw exchange.OrderGateway, settings Settings, log *zap.SugaredLogger, opts ...Option) *Lifecycle {
	if settings.FinalWindowStart == "" {
		settings.FinalWindowStart, settings.FinalWindowEnd = "14:55", "15:00"
	}
	if settings.Scales.SecondTarget == 0 {
		settings.Scales.SecondTarget = 3
	}
	l := &Lifecycle{
		state:    state,
		cache:    cache,
		eval:     eval,
		gate:     gate,
		gw:       gw,
		settings: settings,
		log:      log.With("symbol", state.Symbol, "direction", state.Direction.String(), "variant", state.Variant),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// State 当前状态的副本
func (l *Lifecycle) State() *model.PositionState {
	return l.state.Clone()
}

func (l *Lifecycle) Symbol() string {
	return l.state.Symbol
}

func (l *Lifecycle) Status() model.PositionStatus {
	return l.state.Status
}

func (l *Lifecycle) Cache() *kline.Cache {
	return l.cache
}

// Pending 是否有未结束的订单
func (l *Lifecycle) Pending() bool {
	return l.pending != nil
}

// Step 处理一次行情：先确认挂起订单，再按状态尝试开仓或平仓
func (l *Lifecycle) Step(ctx context.Context, tick model.Tick) ([]model.Execution, error) {
	var execs []model.Execution
	if l.pending != nil {
		exec, err := l.resolvePending(ctx, tick)
		if err != nil {
			return nil, err
		}
		if exec != nil {
			execs = append(execs, *exec)
		}
		if l.pending != nil {
			return execs, nil
		}
	}

	var (
		exec *model.Execution
		err  error
	)
	switch l.state.Status {
	case model.Idle:
		exec, err = l.TryOpen(ctx, tick)
	case model.Open:
		exec, err = l.TryClose(ctx, tick)
	}
	if exec != nil {
		execs = append(execs, *exec)
	}
	return execs, err
}

// EvaluateConditions 按周期逐级判断，任何一级不满足立即返回
func (l *Lifecycle) EvaluateConditions() (model.OpenConditionSet, bool) {
	var set model.OpenConditionSet
	for _, tf := range l.gate.Timeframes() {
		m := l.eval.Evaluate(tf, l.state.Direction, l.state.Variant, l.cache, set)
		if !m.Matched() {
			return nil, false
		}
		set = append(set, m)
	}
	return set, len(set) > 0
}

// TryOpen 未开始状态下满足全部周期条件时开仓
func (l *Lifecycle) TryOpen(ctx context.Context, tick model.Tick) (*model.Execution, error) {
	switch l.state.Status {
	case model.Open:
		return nil, model.Fatal(l.state.Key().String(), fmt.Errorf("%w: open on open position", model.ErrInvalidTransition))
	case model.Closed:
		return nil, nil
	}
	if l.pending != nil {
		return nil, nil
	}

	conds, ok := l.EvaluateConditions()
	if !ok {
		return nil, nil
	}
	if l.approve != nil {
		approved, err := l.approve(ctx, l.state.Clone(), conds)
		if err != nil {
			return nil, err
		}
		if !approved {
			l.log.Infow("open conditions matched, waiting for approval", "daily", conds.Code(model.Daily))
			return nil, nil
		}
	}

	price := tick.Quote.LastPrice
	size := Size(tick.Available, l.settings.OpenPosScale, l.settings.Multiplier, price)
	if size <= 0 {
		l.log.Warnw("open size not positive",
			"available", tick.Available,
			"open_pos_scale", l.settings.OpenPosScale,
			"multiplier", l.settings.Multiplier,
			"price", price,
		)
		return nil, fmt.Errorf("%s: %w", l.state.Key(), model.ErrInvalidSize)
	}

	req := model.OrderRequest{
		Symbol:    l.state.Symbol,
		Direction: l.state.Direction,
		Offset:    model.OffsetOpen,
		Side:      l.state.Direction.OpenSide(),
		Volume:    size,
	}
	order, err := exchange.PlaceWithFallback(ctx, l.gw, req, tick.Quote, l.log)
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderAlive {
		l.pending = &pendingOrder{orderID: order.OrderID, offset: model.OffsetOpen, conds: conds}
		l.log.Infow("open order pending", "order_id", order.OrderID, "volume", size)
		return nil, nil
	}
	return l.applyOpen(order, conds, tick.Time)
}

func (l *Lifecycle) applyOpen(order *model.Order, conds model.OpenConditionSet, at time.Time) (*model.Execution, error) {
	if order.VolumeFilled <= 0 {
		return nil, fmt.Errorf("%w: %s open order %s filled nothing", model.ErrOrderRejected, l.state.Symbol, order.OrderID)
	}
	s := l.state
	sc := l.settings.Scales
	dir := s.Direction

	s.Status = model.Open
	s.CarryingVolume = order.VolumeFilled
	s.OpenPrice = order.FilledPrice
	s.OpenTime = at
	s.OpenConditions = conds.Clone()
	s.TakeProfitPolicy = l.gate.TakeProfitPolicy(conds)
	s.TakeProfitStage = 0
	s.HasEnteredTakeProfit = false
	s.HasRaisedStopLoss = false
	s.StopLossReason = model.ReasonStopLoss
	s.StopLossPrice = CalcPrice(s.OpenPrice, sc.Base, sc.StopLoss, dir == model.Short)
	s.TakeProfitAnchor = 0
	if s.TakeProfitPolicy > 0 {
		s.TakeProfitAnchor = CalcPrice(s.OpenPrice, sc.Base, sc.ProfitStart(s.TakeProfitPolicy), dir == model.Long)
	}
	s.LastModified = at

	l.log.Infow("position opened",
		"price", s.OpenPrice,
		"volume", s.CarryingVolume,
		"stop_loss", s.StopLossPrice,
		"take_profit_anchor", s.TakeProfitAnchor,
		"policy", s.TakeProfitPolicy,
		"daily", conds.Code(model.Daily),
		"hour3", conds.Code(model.Hour3),
	)
	if err := s.CheckInvariant(); err != nil {
		return nil, model.Fatal(s.Key().String(), err)
	}
	return &model.Execution{
		Kind:    model.EventOpen,
		Price:   s.OpenPrice,
		Volume:  s.CarryingVolume,
		OrderID: order.OrderID,
		Time:    at,
	}, nil
}

// ForceClose 不论止盈止损状态平掉全部持仓，用于换月和人工平仓
func (l *Lifecycle) ForceClose(ctx context.Context, tick model.Tick, closeType model.CloseType, reason string) (*model.Execution, error) {
	switch l.state.Status {
	case model.Idle:
		return nil, nil
	case model.Closed:
		return nil, model.Fatal(l.state.Key().String(), fmt.Errorf("%w: force close on closed position", model.ErrInvalidTransition))
	}
	if l.pending != nil {
		return nil, ErrOrderPending
	}
	l.log.Infow("force close", "reason", reason, "price", tick.Quote.LastPrice, "volume", l.state.CarryingVolume)
	return l.closeVolume(ctx, tick, l.state.CarryingVolume, closeType, reason, 0)
}

func (l *Lifecycle) closeVolume(ctx context.Context, tick model.Tick, volume int, closeType model.CloseType, reason string, nextStage int) (*model.Execution, error) {
	req := model.OrderRequest{
		Symbol:    l.state.Symbol,
		Direction: l.state.Direction,
		Offset:    model.OffsetClose,
		Side:      l.state.Direction.CloseSide(),
		Volume:    volume,
	}
	order, err := exchange.PlaceWithFallback(ctx, l.gw, req, tick.Quote, l.log)
	if err != nil {
		return nil, err
	}
	p := &pendingOrder{orderID: order.OrderID, offset: model.OffsetClose, closeType: closeType, reason: reason, nextStage: nextStage}
	if order.Status == model.OrderAlive {
		l.pending = p
		l.log.Infow("close order pending", "order_id", order.OrderID, "volume", volume, "reason", reason)
		return nil, nil
	}
	return l.applyClose(order, p, tick.Time)
}

func (l *Lifecycle) applyClose(order *model.Order, p *pendingOrder, at time.Time) (*model.Execution, error) {
	if order.VolumeFilled <= 0 {
		return nil, fmt.Errorf("%w: %s close order %s filled nothing", model.ErrOrderRejected, l.state.Symbol, order.OrderID)
	}
	s := l.state
	filled := order.VolumeFilled
	if filled > s.CarryingVolume {
		filled = s.CarryingVolume
	}
	s.CarryingVolume -= filled
	if p.nextStage > 0 {
		s.TakeProfitStage = p.nextStage
	}
	if s.CarryingVolume == 0 {
		s.Status = model.Closed
		s.CloseTime = at
	}
	s.LastModified = at

	l.log.Infow("position closed",
		"reason", p.reason,
		"close_type", p.closeType.String(),
		"price", order.FilledPrice,
		"volume", filled,
		"rest", s.CarryingVolume,
		"take_profit_stage", s.TakeProfitStage,
	)
	if err := s.CheckInvariant(); err != nil {
		return nil, model.Fatal(s.Key().String(), err)
	}
	return &model.Execution{
		Kind:      model.EventClose,
		CloseType: p.closeType,
		Reason:    p.reason,
		Price:     order.FilledPrice,
		Volume:    filled,
		OrderID:   order.OrderID,
		Time:      at,
	}, nil
}

func (l *Lifecycle) resolvePending(ctx context.Context, tick model.Tick) (*model.Execution, error) {
	p := l.pending
	order, err := l.gw.QueryOrder(ctx, p.orderID)
	if err != nil {
		return nil, fmt.Errorf("query order %s: %w", p.orderID, err)
	}
	switch order.Status {
	case model.OrderAlive:
		return nil, nil
	case model.OrderRejected:
		l.pending = nil
		l.log.Warnw("pending order rejected", "order_id", p.orderID, "offset", p.offset, "message", order.Message)
		return nil, nil
	}
	l.pending = nil
	if p.offset == model.OffsetOpen {
		return l.applyOpen(order, p.conds, tick.Time)
	}
	return l.applyClose(order, p, tick.Time)
}
