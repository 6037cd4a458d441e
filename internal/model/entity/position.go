package entity

import (
	"time"

	"gorm.io/datatypes"
)

// TradeStatus 合约交易状态，一行对应一个 策略+合约+方向
type TradeStatus struct {
	ID uint64 `gorm:"primaryKey"`

	Variant   string `gorm:"type:varchar(10);not null;uniqueIndex:uk_variant_symbol_dir"`
	Symbol    string `gorm:"type:varchar(30);not null;uniqueIndex:uk_variant_symbol_dir"`
	Direction int    `gorm:"not null;uniqueIndex:uk_variant_symbol_dir"` // 0 做空 1 做多

	TradeStatus    int            `gorm:"column:trade_status;not null"` // 0 未开始 1 交易中 2 已平仓
	CarryingVolume int            `gorm:"column:carrying_volume;not null"`
	OpenPrice      float64        `gorm:"column:open_price;type:decimal(15,4)"`
	StartTime      *time.Time     `gorm:"column:start_time"`
	EndTime        *time.Time     `gorm:"column:end_time"`
	OpenConditions datatypes.JSON `gorm:"column:open_conditions"`

	// 止盈止损
	StopLossPrice  float64 `gorm:"column:stop_loss_price;type:decimal(15,4)"`
	SLReason       string  `gorm:"column:sl_reason;type:varchar(20)"`
	TPStartedPoint float64 `gorm:"column:tp_started_point;type:decimal(15,4)"`
	Stage          int     `gorm:"column:stage"`
	Policy         int     `gorm:"column:policy"`
	HasEnterTP     bool    `gorm:"column:has_enter_tp"`
	HasIncreaseSLP bool    `gorm:"column:has_increase_slp"`

	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (TradeStatus) TableName() string {
	return "trade_status"
}

// Tracking 主连合约当前/下一合约
type Tracking struct {
	ID uint64 `gorm:"primaryKey"`

	CustomID         string `gorm:"column:custom_id;type:varchar(60);not null;uniqueIndex"`
	ContinuousSymbol string `gorm:"column:continuous_symbol;type:varchar(30);not null"`
	Variant          string `gorm:"type:varchar(10);not null"`
	Direction        int    `gorm:"not null"`
	CurrentSymbol    string `gorm:"column:current_symbol;type:varchar(30);not null"`
	NextSymbol       string `gorm:"column:next_symbol;type:varchar(30);not null"`

	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Tracking) TableName() string {
	return "tracking"
}
