package position

import (
	"context"
	"futureflow/internal/contract"
	"futureflow/internal/model"
)

// TryClose 交易中状态下依次检查止损与止盈
func (l *Lifecycle) TryClose(ctx context.Context, tick model.Tick) (*model.Execution, error) {
	s := l.state
	if s.Status != model.Open || l.pending != nil {
		return nil, nil
	}
	price := tick.Quote.LastPrice
	dir := s.Direction

	// 止损，价格回落到止损价或更差
	if !dir.Favorable(price, s.StopLossPrice) {
		closeType := model.CloseStopLoss
		if s.StopLossReason == model.ReasonTakeProfit {
			closeType = model.CloseTakeProfit
		}
		l.log.Infow("stop loss triggered", "price", price, "stop_loss", s.StopLossPrice, "reason", s.StopLossReason)
		return l.closeVolume(ctx, tick, s.CarryingVolume, closeType, s.StopLossReason, 0)
	}

	if s.TakeProfitPolicy <= 0 {
		return nil, nil
	}
	if !s.HasEnteredTakeProfit {
		if !dir.Reached(price, s.TakeProfitAnchor) {
			return nil, nil
		}
		s.HasEnteredTakeProfit = true
		s.LastModified = tick.Time
		if s.TakeProfitPolicy == 4 {
			l.raiseStop(s.OpenPrice, model.ReasonTakeProfit)
			s.TakeProfitStage = 1
		}
		l.log.Infow("entered take profit", "price", price, "anchor", s.TakeProfitAnchor, "policy", s.TakeProfitPolicy)
	}

	if s.TakeProfitPolicy == 4 {
		return l.stagedTakeProfit(ctx, tick)
	}
	return l.trailingTakeProfit(ctx, tick)
}

// 止盈策略 1-3：达到提升价后提高止损，尾盘走弱时全部平仓
func (l *Lifecycle) trailingTakeProfit(ctx context.Context, tick model.Tick) (*model.Execution, error) {
	s := l.state
	sc := l.settings.Scales
	dir := s.Direction
	price := tick.Quote.LastPrice

	if !s.HasRaisedStopLoss {
		promote := CalcPrice(s.OpenPrice, sc.Base, sc.PromoteScale, dir == model.Long)
		if dir.Reached(price, promote) {
			target := CalcPrice(s.OpenPrice, sc.Base, sc.PromoteTarget, dir == model.Long)
			l.raiseStop(target, model.ReasonTrailingStop)
			s.HasRaisedStopLoss = true
			s.LastModified = tick.Time
			l.log.Infow("stop loss raised", "price", price, "promote", promote, "stop_loss", s.StopLossPrice)
		}
	}

	if !contract.InWindow(tick.Time, l.settings.FinalWindowStart, l.settings.FinalWindowEnd) {
		return nil, nil
	}
	daily, ok := l.cache.LastClosed(model.Daily)
	if !ok || !daily.Ready() {
		return nil, nil
	}
	var weak bool
	switch s.TakeProfitPolicy {
	case 1:
		weak = dir.Favorable(daily.EmaLong, price) && dir.Favorable(daily.EmaMid, daily.EmaShort)
	default:
		weak = dir.Favorable(daily.EmaMid, price) && dir.Favorable(daily.EmaMid, daily.EmaShort)
	}
	if !weak {
		return nil, nil
	}
	l.log.Infow("final window take profit",
		"price", price,
		"ema_short", daily.EmaShort,
		"ema_mid", daily.EmaMid,
		"ema_long", daily.EmaLong,
	)
	return l.closeVolume(ctx, tick, s.CarryingVolume, model.CloseTakeProfit, model.ReasonTakeProfit, 0)
}

// 止盈策略 4：第一阶段平一半，第二阶段达到目标价后平剩余
func (l *Lifecycle) stagedTakeProfit(ctx context.Context, tick model.Tick) (*model.Execution, error) {
	s := l.state
	sc := l.settings.Scales
	price := tick.Quote.LastPrice

	switch s.TakeProfitStage {
	case 1:
		volume := s.CarryingVolume / 2
		if volume == 0 {
			volume = s.CarryingVolume
		}
		next := 2
		if volume == s.CarryingVolume {
			next = 0
		}
		return l.closeVolume(ctx, tick, volume, model.CloseTakeProfit, model.ReasonTakeProfit, next)
	case 2:
		target := CalcPrice(s.OpenPrice, sc.Base, sc.SecondTarget, s.Direction == model.Long)
		if !s.Direction.Reached(price, target) {
			return nil, nil
		}
		return l.closeVolume(ctx, tick, s.CarryingVolume, model.CloseTakeProfit, model.ReasonTakeProfit, 0)
	}
	return nil, nil
}

// raiseStop 止损价只能朝有利方向移动
func (l *Lifecycle) raiseStop(price float64, reason string) {
	s := l.state
	if !s.Direction.Favorable(price, s.StopLossPrice) {
		return
	}
	s.StopLossPrice = price
	s.StopLossReason = reason
}
