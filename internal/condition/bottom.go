package condition

import "futureflow/internal/model"

var exploratoryTimeframes = []model.Timeframe{model.Daily, model.Hour3, model.Minute30}

// bottom 摸底策略，做多做空互为镜像
type bottom struct {
	dir      model.Direction
	distance BarDistanceRule
	session  SameSessionRule
}

func NewBottomLong(opts Options) RuleSet {
	return newBottom(model.Long, opts)
}

func NewBottomShort(opts Options) RuleSet {
	return newBottom(model.Short, opts)
}

func newBottom(dir model.Direction, opts Options) *bottom {
	return &bottom{
		dir:      dir,
		distance: BarDistanceRule{MaxBars: opts.BarDistance, Inclusive: opts.Inclusive},
		session:  SameSessionRule{SessionOpenHour: opts.SessionOpenHour},
	}
}

func (r *bottom) Direction() model.Direction { return r.dir }
func (r *bottom) Variant() model.StrategyVariant { return model.Exploratory }
func (r *bottom) Timeframes() []model.Timeframe { return exploratoryTimeframes }

func (r *bottom) Lookback(tf model.Timeframe) int {
	if tf == model.Minute30 {
		return 40
	}
	return 1
}

// above 多头时 a>b，空头时 a<b
func (r *bottom) above(a, b float64) bool {
	return r.dir.Favorable(a, b)
}

// Match 日线：条件1 为 MACD 同向，条件2 为 MACD 未同向
func (r *bottom) Match(tf model.Timeframe, in Input) int {
	c := in.Current()
	s, m, l := c.EmaShort, c.EmaMid, c.EmaLong
	osc := c.Oscillator

	switch tf {
	case model.Daily:
		if r.above(m, s) && r.above(l, m) && r.above(c.Close, s) {
			if r.above(osc, 0) {
				return 1
			}
			return 2
		}
	case model.Hour3:
		if r.above(osc, 0) {
			return 1
		}
	case model.Minute30:
		if r.above(c.Close, l) && r.above(s, l) && r.recent(in) {
			return 1
		}
	}
	return 0
}

// recent 日线 MACD 同向时要求同一交易日内，否则按K线根数距离
func (r *bottom) recent(in Input) bool {
	crossed := func(o model.CandleObservation) bool {
		return !r.above(o.Close, o.EmaLong) || !r.above(o.EmaShort, o.EmaLong)
	}
	if in.Upstream.Code(model.Daily) == 1 {
		return r.session.Check(in.Series, crossed)
	}
	return r.distance.Check(in.Series, crossed)
}

func (r *bottom) TakeProfitPolicy(model.OpenConditionSet) int {
	return 1
}

// DefaultRuleSets 主策略与摸底策略的多空规则
func DefaultRuleSets(opts Options) []RuleSet {
	return []RuleSet{
		NewMainLong(opts),
		NewMainShort(opts),
		NewBottomLong(opts),
		NewBottomShort(opts),
	}
}
