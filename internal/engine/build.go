package engine

import (
	"context"
	"errors"
	"fmt"
	"futureflow/conf"
	"futureflow/internal/condition"
	"futureflow/internal/contract"
	"futureflow/internal/dao"
	"futureflow/internal/exchange"
	"futureflow/internal/kline"
	"futureflow/internal/model"
	"futureflow/internal/position"
	"futureflow/internal/rollover"
	"futureflow/internal/trade"

	"go.uber.org/zap"
)

// Spec 一个 主连合约+策略+方向 的交易参数
type Spec struct {
	Continuous      string // KQ.m@SHFE.rb
	Variant         model.StrategyVariant
	Direction       model.Direction
	Rules           condition.RuleSet
	Position        position.Settings
	Rollover        rollover.Settings
	CandleCapacity  int
	RequireApproval bool // 摸底策略开仓前需要人工确认提示
}

// Deps Trader 依赖的外部组件
type Deps struct {
	Feed      exchange.MarketDataFeed
	Gateway   exchange.OrderGateway
	Repo      dao.Repository
	Recorder  *trade.Recorder
	Evaluator position.Evaluator
	Log       *zap.SugaredLogger
}

// NewTrader 加载或新建跟踪状态，必要时先修复，再创建换月跟踪器
func NewTrader(ctx context.Context, spec Spec, deps Deps) (*Trader, error) {
	id, err := contract.CustomID(spec.Continuous, spec.Variant, spec.Direction)
	if err != nil {
		return nil, err
	}
	if spec.Rules == nil {
		return nil, fmt.Errorf("%s: no rule set", id)
	}
	log := deps.Log.With("continuous_id", id)

	t := &Trader{
		id:       id,
		spec:     spec,
		feed:     deps.Feed,
		gw:       deps.Gateway,
		recorder: deps.Recorder,
		repo:     deps.Repo,
		log:      log,
	}
	t.factory = func(ctx context.Context, ps *model.PositionState) (*position.Lifecycle, error) {
		cache := kline.NewCache(ps.Symbol, kline.ParamsFor(spec.Variant), spec.CandleCapacity)
		var opts []position.Option
		if spec.Variant == model.Exploratory && spec.RequireApproval {
			opts = append(opts, position.WithApprover(tipApprover(deps.Repo, id)))
		}
		return position.NewLifecycle(ps, cache, deps.Evaluator, spec.Rules, deps.Gateway, spec.Position,
			log.Named("position"), opts...), nil
	}
	if err := t.Reload(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload 从持久化状态重建换月跟踪器，K线缓存随之清空
// 取得租约时调用，保证接手的是其他进程最后写入的状态
func (t *Trader) Reload(ctx context.Context) error {
	state, err := t.repo.LoadTrackingState(ctx, t.id)
	switch {
	case errors.Is(err, dao.ErrNotFound):
		if state, err = newTracking(ctx, t.id, t.spec, t.feed); err != nil {
			return err
		}
		if err := t.recorder.SaveTracking(ctx, state); err != nil {
			return err
		}
		t.log.Infow("tracking created", "current", state.Current.Symbol, "next", state.Next.Symbol)
	case err != nil:
		return fmt.Errorf("load tracking %s: %w", t.id, err)
	default:
		if state, _, err = rollover.Reconcile(ctx, t.repo, state, t.spec.Rollover.Months, t.log); err != nil {
			return err
		}
	}

	tracker, err := rollover.NewTracker(ctx, state, t.factory, t.recorder, t.spec.Rollover, t.log.Named("rollover"))
	if err != nil {
		return err
	}
	t.tracker = tracker
	return nil
}

// newTracking 由主连行情确定当前合约，下一合约按主力月份推算
func newTracking(ctx context.Context, id string, spec Spec, feed exchange.MarketDataFeed) (*model.TrackingState, error) {
	q, err := feed.GetQuote(ctx, spec.Continuous)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", spec.Continuous, err)
	}
	if q.Underlying == "" {
		return nil, fmt.Errorf("%s: quote has no underlying contract", spec.Continuous)
	}
	next, err := contract.Next(q.Underlying, spec.Rollover.Months)
	if err != nil {
		return nil, err
	}
	state := &model.TrackingState{
		ContinuousID:     id,
		ContinuousSymbol: spec.Continuous,
		Variant:          spec.Variant,
		Direction:        spec.Direction,
		Current:          model.NewPositionState(spec.Variant, q.Underlying, spec.Direction),
		Next:             model.NewPositionState(spec.Variant, next, spec.Direction),
		LastModified:     q.Timestamp,
	}
	return state, state.Validate()
}

// SpecsFromConfig 展开启用的品种 x 策略 x 方向
func SpecsFromConfig(cfg *conf.Config, eval *condition.Evaluator) ([]Spec, error) {
	var specs []Spec
	for _, f := range cfg.Futures {
		if !f.Active {
			continue
		}
		for _, s := range cfg.Trade.Strategies {
			variant, err := model.ParseVariant(s)
			if err != nil {
				return nil, err
			}
			for _, d := range cfg.Trade.Directions {
				dir, err := model.ParseDirection(d)
				if err != nil {
					return nil, err
				}
				rules, ok := eval.RuleSet(dir, variant)
				if !ok {
					return nil, fmt.Errorf("no rule set for %s %s", variant, dir)
				}
				scales := f.Long
				if dir == model.Short {
					scales = f.Short
				}
				specs = append(specs, Spec{
					Continuous: f.Symbol,
					Variant:    variant,
					Direction:  dir,
					Rules:      rules,
					Position: position.Settings{
						Multiplier:       f.Multiplier,
						OpenPosScale:     f.OpenPosScale,
						Scales:           scalesFrom(scales),
						FinalWindowStart: cfg.Trade.FinalWindowStart,
						FinalWindowEnd:   cfg.Trade.FinalWindowEnd,
					},
					Rollover: rollover.Settings{
						TradeSwitchDays:   f.TradeSwitchDays(),
						NoTradeSwitchDays: f.NoTradeSwitchDays(),
						Months:            f.MainMonths,
					},
					CandleCapacity:  cfg.Trade.CandleCapacity,
					RequireApproval: cfg.Trade.BottomRequiresApproval,
				})
			}
		}
	}
	return specs, nil
}

func scalesFrom(c conf.ScaleConfig) position.Scales {
	return position.Scales{
		Base:          c.BaseScale,
		StopLoss:      c.StopLossScale,
		ProfitStart1:  c.ProfitStartScale1,
		ProfitStart2:  c.ProfitStartScale2,
		PromoteScale:  c.PromoteScale,
		PromoteTarget: c.PromoteTarget,
		SecondTarget:  c.SecondTarget,
	}
}
