package kline

import (
	"fmt"
	"futureflow/internal/model"
	"github.com/markcheno/go-talib"
	"math"
	"time"
)

const DefaultCapacity = 300

// MemoKey 条件匹配结果的缓存键
type MemoKey struct {
	Timeframe model.Timeframe
	Direction model.Direction
	Variant   model.StrategyVariant
	Timestamp time.Time
}

type series struct {
	bars   []model.Bar
	states []lineState
	newBar bool
}

// Cache 单个合约各周期最近 N 根K线及指标
// 最后一根K线视为仍在形成中，其余为已收盘K线
// 只由持有它的生命周期在单一 goroutine 中修改，不做加锁
type Cache struct {
	symbol   string
	params   Params
	capacity int
	series   map[model.Timeframe]*series
	memo     map[MemoKey]model.ConditionMatch
}

func NewCache(symbol string, params Params, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		symbol:   symbol,
		params:   params,
		capacity: capacity,
		series:   make(map[model.Timeframe]*series),
		memo:     make(map[MemoKey]model.ConditionMatch),
	}
}

func (c *Cache) Symbol() string {
	return c.symbol
}

func (c *Cache) Params() Params {
	return c.params
}

// Load 用完整K线序列重建某个周期，指标由 talib 批量计算
func (c *Cache) Load(tf model.Timeframe, bars []model.Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("%s %s: bars not in ascending order at %d", c.symbol, tf, i)
		}
	}
	for i := range bars {
		if math.IsNaN(bars[i].Close) || math.IsInf(bars[i].Close, 0) {
			return fmt.Errorf("%s %s: invalid close at %s", c.symbol, tf, bars[i].Timestamp)
		}
	}
	if len(bars) > c.capacity {
		bars = bars[len(bars)-c.capacity:]
	}

	s := &series{
		bars:   append([]model.Bar(nil), bars...),
		states: seedStates(c.params, bars),
		newBar: len(bars) > 0,
	}
	c.series[tf] = s
	for k := range c.memo {
		if k.Timeframe == tf {
			delete(c.memo, k)
		}
	}
	return nil
}

// Update 推送一根K线：时间戳与最后一根相同则覆盖，更晚则追加
// 返回是否产生了新K线
func (c *Cache) Update(tf model.Timeframe, bar model.Bar) (bool, error) {
	s, ok := c.series[tf]
	if !ok {
		s = &series{}
		c.series[tf] = s
	}
	n := len(s.bars)

	if n > 0 {
		last := s.bars[n-1]
		if bar.Timestamp.Equal(last.Timestamp) {
			prev := newLineState(c.params)
			if n > 1 {
				prev = s.states[n-2]
			}
			s.bars[n-1] = bar
			s.states[n-1] = prev.next(bar.Close)
			s.newBar = false
			c.forget(tf, bar.Timestamp)
			return false, nil
		}
		if bar.Timestamp.Before(last.Timestamp) {
			return false, fmt.Errorf("%s %s: out of order bar %s before %s", c.symbol, tf, bar.Timestamp, last.Timestamp)
		}
	}

	prev := newLineState(c.params)
	if n > 0 {
		prev = s.states[n-1]
	}
	s.bars = append(s.bars, bar)
	s.states = append(s.states, prev.next(bar.Close))
	s.newBar = true

	if over := len(s.bars) - c.capacity; over > 0 {
		s.bars = append([]model.Bar(nil), s.bars[over:]...)
		s.states = append([]lineState(nil), s.states[over:]...)
		oldest := s.bars[0].Timestamp
		for k := range c.memo {
			if k.Timeframe == tf && k.Timestamp.Before(oldest) {
				delete(c.memo, k)
			}
		}
	}
	return true, nil
}

// IsNewBar 最近一次 Update 是否开启了新的K线
func (c *Cache) IsNewBar(tf model.Timeframe) bool {
	s, ok := c.series[tf]
	return ok && s.newBar
}

func (c *Cache) Len(tf model.Timeframe) int {
	if s, ok := c.series[tf]; ok {
		return len(s.bars)
	}
	return 0
}

// Window 最近 length 根K线（含形成中的K线），length<=0 返回全部
func (c *Cache) Window(tf model.Timeframe, length int) []model.CandleObservation {
	s, ok := c.series[tf]
	if !ok {
		return nil
	}
	return c.window(s, len(s.bars), length)
}

// ClosedWindow 最近 length 根已收盘K线
func (c *Cache) ClosedWindow(tf model.Timeframe, length int) []model.CandleObservation {
	s, ok := c.series[tf]
	if !ok || len(s.bars) < 2 {
		return nil
	}
	return c.window(s, len(s.bars)-1, length)
}

func (c *Cache) window(s *series, end, length int) []model.CandleObservation {
	start := 0
	if length > 0 && end-length > 0 {
		start = end - length
	}
	out := make([]model.CandleObservation, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, observe(s.bars[i], s.states[i]))
	}
	return out
}

func (c *Cache) Latest(tf model.Timeframe) (model.CandleObservation, bool) {
	s, ok := c.series[tf]
	if !ok || len(s.bars) == 0 {
		return model.CandleObservation{}, false
	}
	n := len(s.bars) - 1
	return observe(s.bars[n], s.states[n]), true
}

func (c *Cache) LastClosed(tf model.Timeframe) (model.CandleObservation, bool) {
	s, ok := c.series[tf]
	if !ok || len(s.bars) < 2 {
		return model.CandleObservation{}, false
	}
	n := len(s.bars) - 2
	return observe(s.bars[n], s.states[n]), true
}

// LastPrice 形成中K线的收盘价即最新价
func (c *Cache) LastPrice(tf model.Timeframe) (float64, bool) {
	s, ok := c.series[tf]
	if !ok || len(s.bars) == 0 {
		return 0, false
	}
	return s.bars[len(s.bars)-1].Close, true
}

func (c *Cache) Memo(key MemoKey) (model.ConditionMatch, bool) {
	m, ok := c.memo[key]
	return m, ok
}

func (c *Cache) Remember(key MemoKey, m model.ConditionMatch) {
	c.memo[key] = m
}

func (c *Cache) MemoSize() int {
	return len(c.memo)
}

func (c *Cache) forget(tf model.Timeframe, ts time.Time) {
	for k := range c.memo {
		if k.Timeframe == tf && k.Timestamp.Equal(ts) {
			delete(c.memo, k)
		}
	}
}

func observe(b model.Bar, s lineState) model.CandleObservation {
	return model.CandleObservation{
		Timestamp:  b.Timestamp,
		Open:       b.Open,
		Close:      b.Close,
		EmaShort:   value(s.short),
		EmaMid:     value(s.mid),
		EmaLong:    value(s.long),
		Oscillator: s.oscillator(),
	}
}

// seedStates 通过 talib 批量计算每根K线收盘后的指标状态
func seedStates(p Params, bars []model.Bar) []lineState {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	short := seedLine(closes, p.Short)
	mid := seedLine(closes, p.Mid)
	long := seedLine(closes, p.Long)
	fast := seedLine(closes, p.Fast)
	slow := seedLine(closes, p.Slow)

	states := make([]lineState, len(bars))
	difs := make([]float64, len(bars))
	for i := range states {
		states[i] = lineState{short: short[i], mid: mid[i], long: long[i], fast: fast[i], slow: slow[i]}
		difs[i] = states[i].dif()
	}
	// DEA 同样从第一个 DIF 开始
	dea := seedLine(difs, p.Signal)
	for i := range states {
		states[i].dea = dea[i]
	}
	return states
}

// seedLine 返回每个位置的 ema 状态
// talib 以前 period 个值的简单平均作为种子，在序列前补 period-1 个首值，
// 种子即等于首值，之后的递推与 ewm(adjust=False) 相同
func seedLine(xs []float64, period int) []ema {
	out := make([]ema, len(xs))
	if len(xs) == 0 {
		return out
	}
	pad := period - 1
	if pad < 0 {
		pad = 0
	}
	padded := make([]float64, pad, pad+len(xs))
	for i := range padded {
		padded[i] = xs[0]
	}
	padded = append(padded, xs...)
	vals := talib.Ema(padded, period)

	e := newEma(period)
	for i := range xs {
		e.n = i + 1
		e.value = vals[pad+i]
		out[i] = e
	}
	return out
}
