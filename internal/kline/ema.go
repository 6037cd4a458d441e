package kline

import "math"

// ema 增量计算状态，与 ewm(span=period, adjust=False) 一致：
// 第一个值取输入本身，之后 value = (x - value) * k + value
type ema struct {
	k     float64
	n     int
	value float64
}

func newEma(period int) ema {
	return ema{k: 2.0 / float64(period+1), value: math.NaN()}
}

// next 返回加入 x 之后的新状态，NaN 输入不改变状态
func (e ema) next(x float64) ema {
	if math.IsNaN(x) {
		return e
	}
	if e.n == 0 {
		e.value = x
	} else {
		e.value = (x-e.value)*e.k + e.value
	}
	e.n++
	return e
}

func (e ema) ready() bool {
	return e.n > 0
}

// lineState 一根K线收盘后全部指标的状态
type lineState struct {
	short, mid, long ema
	fast, slow, dea  ema
}

func newLineState(p Params) lineState {
	return lineState{
		short: newEma(p.Short),
		mid:   newEma(p.Mid),
		long:  newEma(p.Long),
		fast:  newEma(p.Fast),
		slow:  newEma(p.Slow),
		dea:   newEma(p.Signal),
	}
}

func (s lineState) dif() float64 {
	if !s.fast.ready() || !s.slow.ready() {
		return math.NaN()
	}
	return s.fast.value - s.slow.value
}

func (s lineState) next(close float64) lineState {
	s.short = s.short.next(close)
	s.mid = s.mid.next(close)
	s.long = s.long.next(close)
	s.fast = s.fast.next(close)
	s.slow = s.slow.next(close)
	s.dea = s.dea.next(s.dif())
	return s
}

// oscillator MACD 柱：2 * (DIF - DEA)
func (s lineState) oscillator() float64 {
	if !s.dea.ready() {
		return math.NaN()
	}
	return 2 * (s.dif() - s.dea.value)
}

func value(e ema) float64 {
	if !e.ready() {
		return math.NaN()
	}
	return e.value
}
