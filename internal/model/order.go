package model

import "time"

type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Offset 开平标志
type Offset string

const (
	OffsetOpen  Offset = "OPEN"
	OffsetClose Offset = "CLOSE"
)

type OrderType string

const (
	// 市价下单
	Market OrderType = "market"
	// 限价下单，价格取对手一档
	Limit OrderType = "limit"
)

type OrderStatus string

const (
	OrderAlive    OrderStatus = "ALIVE"
	OrderFinished OrderStatus = "FINISHED"
	OrderRejected OrderStatus = "REJECTED"
)

// OrderRequest 下单请求，LimitPrice 为 0 表示市价单
type OrderRequest struct {
	Symbol     string
	Direction  Direction // 持仓方向，不是买卖方向
	Offset     Offset
	Side       OrderSide
	Volume     int
	LimitPrice float64
}

func (r OrderRequest) Type() OrderType {
	if r.LimitPrice > 0 {
		return Limit
	}
	return Market
}

type Order struct {
	OrderID      string
	Symbol       string
	Side         OrderSide
	Offset       Offset
	Status       OrderStatus
	VolumeOrigin int
	VolumeFilled int
	FilledPrice  float64 // 成交均价
	InsertTime   time.Time
	Message      string
}

// Done 订单已结束（成交或拒绝）
func (o *Order) Done() bool {
	return o.Status == OrderFinished || o.Status == OrderRejected
}

// Quote 合约行情快照
type Quote struct {
	Symbol         string
	LastPrice      float64
	BidPrice1      float64
	AskPrice1      float64
	Timestamp      time.Time
	ExpireRestDays int    // 距离到期的剩余天数
	Underlying     string // 主连合约对应的具体合约，只有主连行情有值
}

// Account 账户资金
type Account struct {
	Balance   float64
	Available float64
}

// Tick 一次行情推送，交给生命周期与换月处理
type Tick struct {
	Time           time.Time
	Quote          Quote
	Available      float64
	ExpireRestDays int
}
