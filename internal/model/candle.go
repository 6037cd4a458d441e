package model

import (
	"math"
	"time"
)

// Bar 行情源推送的原始K线
type Bar struct {
	Timestamp time.Time `json:"time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// CandleObservation 带指标的K线快照
// 周期走完后不可变，只有最后一根仍在形成中的K线允许被覆盖
type CandleObservation struct {
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	Close      float64   `json:"close"`
	EmaShort   float64   `json:"ema_short"`
	EmaMid     float64   `json:"ema_mid"`
	EmaLong    float64   `json:"ema_long"`
	Oscillator float64   `json:"oscillator"`
}

// Ready 指标是否已完成预热
func (o CandleObservation) Ready() bool {
	for _, v := range []float64{o.Open, o.Close, o.EmaShort, o.EmaMid, o.EmaLong, o.Oscillator} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return !o.Timestamp.IsZero()
}

// ConditionMatch 某周期某根K线的条件匹配结果，Code=0 表示未匹配
type ConditionMatch struct {
	Timeframe Timeframe         `json:"timeframe"`
	Direction Direction         `json:"direction"`
	Variant   StrategyVariant   `json:"variant"`
	Code      int               `json:"code"`
	Snapshot  CandleObservation `json:"snapshot"`
}

func (m ConditionMatch) Matched() bool {
	return m.Code > 0
}

// OpenConditionSet 开仓时各周期满足的条件，顺序为 日线 -> 3小时 -> 30分钟 -> 5分钟
type OpenConditionSet []ConditionMatch

// Code 返回某周期的条件编号，不存在时返回0
func (s OpenConditionSet) Code(tf Timeframe) int {
	for _, m := range s {
		if m.Timeframe == tf {
			return m.Code
		}
	}
	return 0
}

func (s OpenConditionSet) Clone() OpenConditionSet {
	if s == nil {
		return nil
	}
	out := make(OpenConditionSet, len(s))
	copy(out, s)
	return out
}
