package position

import "github.com/shopspring/decimal"

// Scales 单方向的止盈止损参数，价格 = 开仓价 * (1 ± Base * 倍数)
type Scales struct {
	Base          float64
	StopLoss      float64
	ProfitStart1  float64 // 止盈策略 1-3 开始监控的倍数
	ProfitStart2  float64 // 止盈策略 4 开始监控的倍数
	PromoteScale  float64 // 达到该倍数时提高止损
	PromoteTarget float64 // 止损提高到的倍数
	SecondTarget  float64 // 止盈策略 4 剩余仓位的目标倍数
}

func (s Scales) ProfitStart(policy int) float64 {
	if policy == 4 {
		return s.ProfitStart2
	}
	return s.ProfitStart1
}

// Settings 单个品种的开仓与止盈止损参数
type Settings struct {
	Multiplier   float64
	OpenPosScale float64
	Scales       Scales
	// 尾盘止盈时间窗口，格式 15:04
	FinalWindowStart string
	FinalWindowEnd   string
}

// Size 开仓手数 = floor(可用资金 * 开仓比例 / 合约乘数 / 价格)
func Size(available, scale, multiplier, price float64) int {
	if price <= 0 || multiplier <= 0 || available <= 0 || scale <= 0 {
		return 0
	}
	n := decimal.NewFromFloat(available).
		Mul(decimal.NewFromFloat(scale)).
		Div(decimal.NewFromFloat(multiplier)).
		Div(decimal.NewFromFloat(price)).
		Floor()
	return int(n.IntPart())
}

// CalcPrice 按比例上浮或下调价格，保留两位小数
func CalcPrice(price, base, k float64, up bool) float64 {
	delta := decimal.NewFromFloat(base).Mul(decimal.NewFromFloat(k))
	factor := decimal.NewFromInt(1).Sub(delta)
	if up {
		factor = decimal.NewFromInt(1).Add(delta)
	}
	return decimal.NewFromFloat(price).Mul(factor).Round(2).InexactFloat64()
}
