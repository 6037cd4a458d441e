package model

import (
	"fmt"
	"strings"
	"time"
)

// Direction 交易方向，数值与历史数据保持一致：0 做空，1 做多
type Direction int

const (
	Short Direction = 0
	Long  Direction = 1
)

func (d Direction) String() string {
	if d == Long {
		return "long"
	}
	return "short"
}

// Label 中文描述，用于通知
func (d Direction) Label() string {
	if d == Long {
		return "做多"
	}
	return "做空"
}

// Favorable 判断价格 a 是否在 b 的有利一侧（多头向上，空头向下）
func (d Direction) Favorable(a, b float64) bool {
	if d == Long {
		return a > b
	}
	return a < b
}

// Reached 判断价格是否触及目标价（含等于）
func (d Direction) Reached(price, target float64) bool {
	if d == Long {
		return price >= target
	}
	return price <= target
}

// OpenSide 开仓买卖方向
func (d Direction) OpenSide() OrderSide {
	if d == Long {
		return Buy
	}
	return Sell
}

// CloseSide 平仓买卖方向
func (d Direction) CloseSide() OrderSide {
	if d == Long {
		return Sell
	}
	return Buy
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy", "1":
		return Long, nil
	case "short", "sell", "0":
		return Short, nil
	}
	return Short, fmt.Errorf("invalid direction: %q", s)
}

// StrategyVariant 策略类型：主策略 / 摸底策略
type StrategyVariant string

const (
	Primary     StrategyVariant = "main"
	Exploratory StrategyVariant = "bottom"
)

func ParseVariant(s string) (StrategyVariant, error) {
	switch StrategyVariant(strings.ToLower(strings.TrimSpace(s))) {
	case Primary:
		return Primary, nil
	case Exploratory:
		return Exploratory, nil
	}
	return "", fmt.Errorf("invalid strategy variant: %q", s)
}

// Timeframe K线周期
type Timeframe int

const (
	Daily Timeframe = iota + 1
	Hour3
	Minute30
	Minute5
)

var timeframeNames = map[Timeframe]string{
	Daily:    "1d",
	Hour3:    "3h",
	Minute30: "30m",
	Minute5:  "5m",
}

func (tf Timeframe) String() string {
	if s, ok := timeframeNames[tf]; ok {
		return s
	}
	return fmt.Sprintf("tf(%d)", int(tf))
}

func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Daily:
		return 24 * time.Hour
	case Hour3:
		return 3 * time.Hour
	case Minute30:
		return 30 * time.Minute
	case Minute5:
		return 5 * time.Minute
	}
	return 0
}

// AllTimeframes 从大周期到小周期
func AllTimeframes() []Timeframe {
	return []Timeframe{Daily, Hour3, Minute30, Minute5}
}
