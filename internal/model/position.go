package model

import (
	"fmt"
	"time"
)

// PositionStatus 合约交易状态：0 未开始，1 交易中，2 已平仓
type PositionStatus int

const (
	Idle   PositionStatus = 0
	Open   PositionStatus = 1
	Closed PositionStatus = 2
)

func (s PositionStatus) String() string {
	switch s {
	case Idle:
		return "idle"
	case Open:
		return "open"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// 止损原因
const (
	ReasonStopLoss     = "stop-loss"
	ReasonTrailingStop = "trailing-stop"
	ReasonTakeProfit   = "take-profit"
	ReasonRollover     = "rollover"
	ReasonManual       = "manual"
)

// PositionKey 合约状态的唯一键
type PositionKey struct {
	Variant   StrategyVariant
	Symbol    string
	Direction Direction
}

func (k PositionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Variant, k.Symbol, k.Direction)
}

// PositionState 单个合约+方向的交易状态
type PositionState struct {
	Symbol         string           `json:"symbol"`
	Direction      Direction        `json:"direction"`
	Variant        StrategyVariant  `json:"variant"`
	Status         PositionStatus   `json:"status"`
	CarryingVolume int              `json:"carrying_volume"` // 已开仓数量 - 已平仓数量
	OpenPrice      float64          `json:"open_price"`
	OpenTime       time.Time        `json:"open_time"`
	OpenConditions OpenConditionSet `json:"open_conditions"`

	StopLossPrice        float64 `json:"stop_loss_price"`
	StopLossReason       string  `json:"stop_loss_reason"`
	TakeProfitAnchor     float64 `json:"take_profit_anchor"` // 止盈监控开始价格
	TakeProfitStage      int     `json:"take_profit_stage"`
	TakeProfitPolicy     int     `json:"take_profit_policy"`
	HasEnteredTakeProfit bool    `json:"has_entered_take_profit"`
	HasRaisedStopLoss    bool    `json:"has_raised_stop_loss"`

	CloseTime    time.Time `json:"close_time"`
	LastModified time.Time `json:"last_modified"`
}

func NewPositionState(variant StrategyVariant, symbol string, dir Direction) *PositionState {
	return &PositionState{
		Symbol:         symbol,
		Direction:      dir,
		Variant:        variant,
		Status:         Idle,
		StopLossReason: ReasonStopLoss,
	}
}

func (p *PositionState) Key() PositionKey {
	return PositionKey{Variant: p.Variant, Symbol: p.Symbol, Direction: p.Direction}
}

func (p *PositionState) Clone() *PositionState {
	if p == nil {
		return nil
	}
	c := *p
	c.OpenConditions = p.OpenConditions.Clone()
	return &c
}

// CheckInvariant 状态与持仓数量必须一致
func (p *PositionState) CheckInvariant() error {
	switch p.Status {
	case Idle, Closed:
		if p.CarryingVolume != 0 {
			return fmt.Errorf("%s: status %s with carrying volume %d", p.Key(), p.Status, p.CarryingVolume)
		}
	case Open:
		if p.CarryingVolume <= 0 {
			return fmt.Errorf("%s: open with carrying volume %d", p.Key(), p.CarryingVolume)
		}
	default:
		return fmt.Errorf("%s: unknown status %d", p.Key(), int(p.Status))
	}
	return nil
}
