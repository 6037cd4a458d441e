package kline

import "futureflow/internal/model"

// Params 均线与 MACD 周期
type Params struct {
	Short int `yaml:"short"`
	Mid   int `yaml:"mid"`
	Long  int `yaml:"long"`

	Fast   int `yaml:"fast"`
	Slow   int `yaml:"slow"`
	Signal int `yaml:"signal"`
}

var (
	// 主策略 9/22/60
	MainParams = Params{Short: 9, Mid: 22, Long: 60, Fast: 12, Slow: 24, Signal: 4}
	// 摸底策略 5/20/60
	BottomParams = Params{Short: 5, Mid: 20, Long: 60, Fast: 12, Slow: 24, Signal: 4}
)

func ParamsFor(v model.StrategyVariant) Params {
	if v == model.Exploratory {
		return BottomParams
	}
	return MainParams
}
