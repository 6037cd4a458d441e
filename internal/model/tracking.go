package model

import (
	"fmt"
	"time"
)

// TrackingState 主连合约状态
// Current 是当前跟踪的合约，Next 是下一次换月后成为当前的合约
type TrackingState struct {
	ContinuousID     string          `json:"continuous_id"` // 主连合约+交易策略+交易方向
	ContinuousSymbol string          `json:"continuous_symbol"`
	Variant          StrategyVariant `json:"variant"`
	Direction        Direction       `json:"direction"`
	Current          *PositionState  `json:"current"`
	Next             *PositionState  `json:"next"`
	LastModified     time.Time       `json:"last_modified"`
}

func (t *TrackingState) Clone() *TrackingState {
	if t == nil {
		return nil
	}
	c := *t
	c.Current = t.Current.Clone()
	c.Next = t.Next.Clone()
	return &c
}

// Validate 当前合约与下一合约必须不同
func (t *TrackingState) Validate() error {
	if t.Current == nil || t.Next == nil {
		return fmt.Errorf("%s: tracking state without current/next contract", t.ContinuousID)
	}
	if t.Current.Symbol == t.Next.Symbol {
		return fmt.Errorf("%s: current and next both reference %s: %w", t.ContinuousID, t.Current.Symbol, ErrAmbiguousTracking)
	}
	return nil
}
