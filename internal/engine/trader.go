package engine

import (
	"context"
	"errors"
	"fmt"
	"futureflow/internal/dao"
	"futureflow/internal/exchange"
	"futureflow/internal/kline"
	"futureflow/internal/model"
	"futureflow/internal/position"
	"futureflow/internal/rollover"
	"futureflow/internal/trade"
	"time"

	"go.uber.org/zap"
)

// 已有缓存时每次只拉取最近几根K线
const refreshLength = 10

// Trader 单个 主连合约+策略+方向 的驱动者，持有换月跟踪器与两个合约的生命周期
// 只能由 Runner 的 goroutine 调用
type Trader struct {
	id       string
	spec     Spec
	tracker  *rollover.Tracker
	factory  rollover.Factory
	feed     exchange.MarketDataFeed
	gw       exchange.OrderGateway
	recorder *trade.Recorder
	repo     dao.Repository
	halted   error
	log      *zap.SugaredLogger
}

func (t *Trader) ID() string {
	return t.id
}

func (t *Trader) Spec() Spec {
	return t.spec
}

func (t *Trader) Tracker() *rollover.Tracker {
	return t.tracker
}

// Halted 返回导致停止的错误，未停止时为 nil
func (t *Trader) Halted() error {
	return t.halted
}

// halt 停止处理该主连合约并通知运维
func (t *Trader) halt(ctx context.Context, err error) {
	if t.halted != nil {
		return
	}
	t.halted = err
	t.log.Errorw("trader halted", "error", err)
	t.recorder.Fatal(ctx, t.tracker.State(), err)
}

// handle 致命错误停止该合约，其余错误只记录
func (t *Trader) handle(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if model.IsFatal(err) {
		t.halt(ctx, err)
		return err
	}
	t.log.Warnw("cycle failed", "error", err)
	return nil
}

// Cycle 刷新K线与行情，判断换月，然后驱动当前与下一合约
func (t *Trader) Cycle(ctx context.Context) error {
	if t.halted != nil {
		return nil
	}
	ticks, err := t.ticks(ctx)
	if err != nil {
		return t.handle(ctx, err)
	}

	cur := t.tracker.Current().Symbol()
	if tick, ok := ticks[cur]; ok {
		switched, err := t.tracker.MaybeSwitch(ctx, tick)
		if err != nil {
			return t.handle(ctx, err)
		}
		if switched {
			// 新的下一合约还没有K线，下一轮再驱动
			return nil
		}
	}
	return t.handle(ctx, t.tracker.Step(ctx, ticks))
}

// ticks 刷新两个合约的K线缓存并组装行情，获取失败的合约本轮跳过
func (t *Trader) ticks(ctx context.Context) (map[string]model.Tick, error) {
	acct, err := t.gw.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	ticks := make(map[string]model.Tick, 2)
	for _, l := range []*position.Lifecycle{t.tracker.Current(), t.tracker.Next()} {
		if err := t.refresh(ctx, l.Cache()); err != nil {
			t.log.Warnw("refresh candles failed", "symbol", l.Symbol(), "error", err)
			continue
		}
		tick, err := t.tick(ctx, l.Symbol(), acct.Available)
		if err != nil {
			t.log.Warnw("quote unavailable", "symbol", l.Symbol(), "error", err)
			continue
		}
		ticks[l.Symbol()] = tick
	}
	return ticks, nil
}

func (t *Trader) tick(ctx context.Context, symbol string, available float64) (model.Tick, error) {
	q, err := t.feed.GetQuote(ctx, symbol)
	if err != nil {
		return model.Tick{}, err
	}
	ts := q.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return model.Tick{
		Time:           ts,
		Quote:          q,
		Available:      available,
		ExpireRestDays: q.ExpireRestDays,
	}, nil
}

// refresh 缓存为空时整段加载，否则只推送最新的几根
func (t *Trader) refresh(ctx context.Context, cache *kline.Cache) error {
	for _, tf := range t.spec.Rules.Timeframes() {
		if cache.Len(tf) == 0 {
			bars, err := t.feed.GetCandleSeries(ctx, cache.Symbol(), tf, t.spec.CandleCapacity)
			if err != nil {
				return fmt.Errorf("load %s %s: %w", cache.Symbol(), tf, err)
			}
			if err := cache.Load(tf, bars); err != nil {
				return err
			}
			continue
		}
		bars, err := t.feed.GetCandleSeries(ctx, cache.Symbol(), tf, refreshLength)
		if err != nil {
			return fmt.Errorf("update %s %s: %w", cache.Symbol(), tf, err)
		}
		latest, _ := cache.Latest(tf)
		for _, b := range bars {
			if b.Timestamp.Before(latest.Timestamp) {
				continue
			}
			if _, err := cache.Update(tf, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// GenerateTip 摸底策略盘前判断当前合约，条件满足时保存开仓提示
// 返回 nil 表示没有新提示
func (t *Trader) GenerateTip(ctx context.Context, now time.Time) (*model.EntryTip, error) {
	if t.halted != nil || t.spec.Variant != model.Exploratory {
		return nil, nil
	}
	l := t.tracker.Current()
	if l.Status() != model.Idle {
		return nil, nil
	}
	if err := t.refresh(ctx, l.Cache()); err != nil {
		return nil, t.handle(ctx, err)
	}
	conds, ok := l.EvaluateConditions()
	if !ok {
		return nil, nil
	}
	daily, ok := dailyMatch(conds)
	if !ok {
		return nil, nil
	}
	acct, err := t.gw.Account(ctx)
	if err != nil {
		return nil, t.handle(ctx, fmt.Errorf("query account: %w", err))
	}

	price := daily.Snapshot.Close
	tip := &model.EntryTip{
		ContinuousID: t.ID(),
		Symbol:       l.Symbol(),
		Direction:    t.spec.Direction,
		DailyTime:    daily.Snapshot.Timestamp,
		LastPrice:    price,
		Volume:       position.Size(acct.Available, t.spec.Position.OpenPosScale, t.spec.Position.Multiplier, price),
		Conditions:   conds,
		CreatedAt:    now,
	}
	created, err := t.recorder.RecordTip(ctx, tip)
	if err != nil {
		return nil, t.handle(ctx, err)
	}
	if !created {
		return nil, nil
	}
	t.log.Infow("entry tip generated", "symbol", tip.Symbol, "daily_time", tip.DailyTime, "volume", tip.Volume)
	return tip, nil
}

// ManualClose 人工平仓，symbol 为空时平当前合约
func (t *Trader) ManualClose(ctx context.Context, symbol string) error {
	if t.halted != nil {
		return fmt.Errorf("%s halted: %w", t.ID(), t.halted)
	}
	if symbol == "" {
		symbol = t.tracker.Current().Symbol()
	}
	acct, err := t.gw.Account(ctx)
	if err != nil {
		return fmt.Errorf("query account: %w", err)
	}
	tick, err := t.tick(ctx, symbol, acct.Available)
	if err != nil {
		return err
	}
	err = t.tracker.Close(ctx, symbol, tick)
	if model.IsFatal(err) {
		t.halt(ctx, err)
	}
	return err
}

func dailyMatch(conds model.OpenConditionSet) (model.ConditionMatch, bool) {
	for _, m := range conds {
		if m.Timeframe == model.Daily {
			return m, true
		}
	}
	return model.ConditionMatch{}, false
}

// tipApprover 摸底策略开仓前必须有同一根日K线的提示，且已被人工确认
func tipApprover(repo dao.Repository, continuousID string) position.Approver {
	return func(ctx context.Context, _ *model.PositionState, conds model.OpenConditionSet) (bool, error) {
		daily, ok := dailyMatch(conds)
		if !ok {
			return false, nil
		}
		tip, err := repo.FindTip(ctx, continuousID, daily.Snapshot.Timestamp)
		if errors.Is(err, dao.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("find tip %s: %w", continuousID, err)
		}
		return tip.NeedTrade, nil
	}
}
