package entity

import (
	"time"

	"gorm.io/datatypes"
)

// TradeRecord 开平仓流水，只追加
type TradeRecord struct {
	ID int64 `gorm:"primaryKey;autoIncrement:false"` // snowflake

	CustomID  string    `gorm:"column:custom_id;type:varchar(60);not null;index:idx_custom_time"`
	Symbol    string    `gorm:"type:varchar(30);not null"`
	Variant   string    `gorm:"type:varchar(10);not null"`
	Direction int       `gorm:"not null"`
	Kind      string    `gorm:"type:varchar(10);not null"` // open/close
	CloseType int       `gorm:"column:close_type"`         // 0 止损 1 止盈 2 换月 3 人工
	Reason    string    `gorm:"type:varchar(20)"`
	Price     float64   `gorm:"type:decimal(15,4);not null"`
	Volume    int       `gorm:"not null"`
	OrderID   string    `gorm:"column:order_id;type:varchar(64)"`
	Next      string    `gorm:"column:next_symbol;type:varchar(30)"`
	TradeTime time.Time `gorm:"column:trade_time;not null;index:idx_custom_time"`
}

func (TradeRecord) TableName() string {
	return "trade_record"
}

// BottomTip 摸底策略开仓提示
type BottomTip struct {
	ID int64 `gorm:"primaryKey;autoIncrement:false"`

	CustomID      string         `gorm:"column:custom_id;type:varchar(60);not null;index"`
	Symbol        string         `gorm:"type:varchar(30);not null"`
	Direction     int            `gorm:"not null"`
	DKlineTime    time.Time      `gorm:"column:dkline_time;not null"`
	LastPrice     float64        `gorm:"column:last_price;type:decimal(15,4)"`
	Volume        int            `gorm:"column:volume"`
	OpenCondition datatypes.JSON `gorm:"column:open_condition"`
	NeedTrade     bool           `gorm:"column:need_trade"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
}

func (BottomTip) TableName() string {
	return "bottom_tips"
}
