package model

import "time"

// CloseType 平仓类型 0: 止损, 1: 止盈, 2: 换月, 3: 人工平仓
type CloseType int

const (
	CloseStopLoss   CloseType = 0
	CloseTakeProfit CloseType = 1
	CloseRollover   CloseType = 2
	CloseManual     CloseType = 3
)

func (c CloseType) String() string {
	switch c {
	case CloseStopLoss:
		return "stop-loss"
	case CloseTakeProfit:
		return "take-profit"
	case CloseRollover:
		return "rollover"
	case CloseManual:
		return "manual"
	}
	return "unknown"
}

// TradeEventKind 交易记录类型
type TradeEventKind string

const (
	EventOpen  TradeEventKind = "open"
	EventClose TradeEventKind = "close"
)

// Execution 生命周期一次成交的结果，由调用方交给 TradeRecorder 落库
type Execution struct {
	Kind      TradeEventKind
	CloseType CloseType
	Reason    string
	Price     float64
	Volume    int
	OrderID   string
	Time      time.Time
}

// TradeRecord 开平仓流水
type TradeRecord struct {
	ID           int64           `json:"id"`
	ContinuousID string          `json:"continuous_id"`
	Symbol       string          `json:"symbol"`
	Direction    Direction       `json:"direction"`
	Variant      StrategyVariant `json:"variant"`
	Kind         TradeEventKind  `json:"kind"`
	CloseType    CloseType       `json:"close_type"`
	Reason       string          `json:"reason"`
	Price        float64         `json:"price"`
	Volume       int             `json:"volume"`
	OrderID      string          `json:"order_id"`
	NextSymbol   string          `json:"next_symbol,omitempty"` // 换月平仓时记录接替的合约
	Time         time.Time       `json:"time"`
}

// EntryTip 摸底策略盘前开仓提示
type EntryTip struct {
	ID           int64            `json:"id"`
	ContinuousID string           `json:"continuous_id"`
	Symbol       string           `json:"symbol"`
	Direction    Direction        `json:"direction"`
	DailyTime    time.Time        `json:"daily_time"` // 最近一根日K线时间
	LastPrice    float64          `json:"last_price"` // 上一交易日收盘价
	Volume       int              `json:"volume"`     // 预计开仓数量
	Conditions   OpenConditionSet `json:"conditions"`
	NeedTrade    bool             `json:"need_trade"` // 人工确认后才允许开仓
	CreatedAt    time.Time        `json:"created_at"`
}
