package condition

import (
	"futureflow/internal/kline"
	"futureflow/internal/model"
	"go.uber.org/zap"
	"math"
)

// Input 某周期一次条件判断的输入
type Input struct {
	// 已收盘K线，最后一根是被判断的K线
	Series []model.CandleObservation
	// 日线，包含形成中的最后一根
	Daily []model.CandleObservation
	// 上级周期已匹配的条件
	Upstream model.OpenConditionSet
}

func (in Input) Current() model.CandleObservation {
	return in.Series[len(in.Series)-1]
}

// RuleSet 一个 方向+策略 的开仓条件规则
type RuleSet interface {
	Direction() model.Direction
	Variant() model.StrategyVariant
	// Timeframes 逐级判断的周期，顺序即判断顺序
	Timeframes() []model.Timeframe
	// Lookback 判断所需的已收盘K线数量
	Lookback(tf model.Timeframe) int
	// Match 返回条件编号，0 表示不满足
	Match(tf model.Timeframe, in Input) int
	// TakeProfitPolicy 根据开仓条件选择止盈策略
	TakeProfitPolicy(set model.OpenConditionSet) int
}

type ruleKey struct {
	dir     model.Direction
	variant model.StrategyVariant
}

// Evaluator 按 方向+策略 查找规则并对K线缓存做条件判断，结果按K线时间缓存
type Evaluator struct {
	rules map[ruleKey]RuleSet
	log   *zap.SugaredLogger
}

func NewEvaluator(log *zap.SugaredLogger, sets ...RuleSet) *Evaluator {
	e := &Evaluator{rules: make(map[ruleKey]RuleSet), log: log}
	for _, s := range sets {
		e.rules[ruleKey{s.Direction(), s.Variant()}] = s
	}
	return e
}

func (e *Evaluator) RuleSet(dir model.Direction, variant model.StrategyVariant) (RuleSet, bool) {
	rs, ok := e.rules[ruleKey{dir, variant}]
	return rs, ok
}

// Evaluate 对 tf 周期最后一根已收盘K线做判断
// 数据不足或指标未就绪时返回 Code=0，且不写入缓存
func (e *Evaluator) Evaluate(tf model.Timeframe, dir model.Direction, variant model.StrategyVariant,
	cache *kline.Cache, upstream model.OpenConditionSet) model.ConditionMatch {
	miss := model.ConditionMatch{Timeframe: tf, Direction: dir, Variant: variant}

	rs, ok := e.RuleSet(dir, variant)
	if !ok {
		e.log.Warnw("no rule set", "direction", dir, "variant", variant)
		return miss
	}
	lookback := rs.Lookback(tf)
	series := cache.ClosedWindow(tf, lookback)
	if len(series) == 0 || len(series) < lookback {
		e.log.Debugw("insufficient history", "symbol", cache.Symbol(), "timeframe", tf, "bars", len(series), "need", lookback)
		return miss
	}
	cur := series[len(series)-1]
	if !cur.Ready() {
		e.log.Debugw("indicators not ready", "symbol", cache.Symbol(), "timeframe", tf, "time", cur.Timestamp)
		return miss
	}

	key := kline.MemoKey{Timeframe: tf, Direction: dir, Variant: variant, Timestamp: cur.Timestamp}
	if m, ok := cache.Memo(key); ok {
		return m
	}

	code := rs.Match(tf, Input{Series: series, Daily: cache.Window(model.Daily, 0), Upstream: upstream})
	m := model.ConditionMatch{Timeframe: tf, Direction: dir, Variant: variant, Code: code, Snapshot: cur}
	cache.Remember(key, m)
	if code > 0 {
		e.log.Infow("condition matched",
			"symbol", cache.Symbol(),
			"direction", dir.Label(),
			"variant", variant,
			"timeframe", tf,
			"condition", code,
			"kline_time", cur.Timestamp,
			"ema_short", cur.EmaShort,
			"ema_mid", cur.EmaMid,
			"ema_long", cur.EmaLong,
			"close", cur.Close,
			"macd", cur.Oscillator,
		)
	}
	return m
}

// diff 两个值的相对距离（百分比）
func diff(a, b float64) float64 {
	return math.Abs(a-b) / b * 100
}

func between(lo, x, hi float64) bool {
	return lo < x && x < hi
}

func oneOf(code int, set ...int) bool {
	for _, c := range set {
		if c == code {
			return true
		}
	}
	return false
}
