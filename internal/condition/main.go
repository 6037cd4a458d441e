package condition

import (
	"futureflow/internal/model"
	"math"
)

var primaryTimeframes = []model.Timeframe{model.Daily, model.Hour3, model.Minute30, model.Minute5}

// mainLong 主策略做多
type mainLong struct {
	crossing CrossingRule
}

func NewMainLong(opts Options) RuleSet {
	return &mainLong{crossing: CrossingRule{MaxGap: opts.CrossingMaxGap}}
}

func (r *mainLong) Direction() model.Direction { return model.Long }
func (r *mainLong) Variant() model.StrategyVariant { return model.Primary }
func (r *mainLong) Timeframes() []model.Timeframe { return primaryTimeframes }

func (r *mainLong) Lookback(tf model.Timeframe) int {
	if tf == model.Hour3 {
		return 60
	}
	return 1
}

func (r *mainLong) Match(tf model.Timeframe, in Input) int {
	c := in.Current()
	switch tf {
	case model.Daily:
		return r.daily(c)
	case model.Hour3:
		return r.hour3(c, in.Upstream.Code(model.Daily), in.Series)
	case model.Minute30, model.Minute5:
		if c.Close > c.EmaLong && c.Oscillator > 0 && diff(c.Close, c.EmaLong) < 1.2 {
			return 1
		}
	}
	return 0
}

func (r *mainLong) daily(c model.CandleObservation) int {
	s, m, l := c.EmaShort, c.EmaMid, c.EmaLong
	d9, d22, dc := diff(s, l), diff(m, l), diff(c.Close, l)

	if m < l {
		if (d9 < 1 || d22 < 1) && c.Close > l && c.Oscillator > 0 {
			return 1
		}
		return 0
	}
	if m > l {
		low := math.Min(c.Open, c.Close)
		switch {
		case d22 < 1 && c.Close > l:
			return 2
		case between(1, d9, 3) && s > m && m > low && low > l:
			return 3
		case between(1, d22, 3) && d9 < 2 && m > c.Close && c.Close > l && m > s && s > l:
			return 4
		case d22 > 3 && dc < 3 && m > c.Close && c.Close > l && m > c.Open && c.Open > l:
			return 5
		}
	}
	return 0
}

func (r *mainLong) hour3(c model.CandleObservation, daily int, series []model.CandleObservation) int {
	s, m, l := c.EmaShort, c.EmaMid, c.EmaLong
	d9, d22 := diff(s, l), diff(m, l)
	if !(diff(c.Close, l) < 3 || diff(c.Open, l) < 3) {
		return 0
	}

	switch {
	case oneOf(daily, 1, 2):
		if m < l && s < l && (d22 < 1 || between(1, d22, 2) && (c.Oscillator > 0 || c.Close > l)) {
			return 1
		} else if c.Close > s && s > m && m > l {
			if r.crossing.Check(series) {
				return 2
			}
		} else if d9 < 1 && d22 < 1 && c.Oscillator > 0 {
			return 5
		}
	case oneOf(daily, 3, 4):
		if c.Close > l && l > m && c.Oscillator > 0 && d22 < 1 && s < l {
			return 3
		} else if daily == 3 && d9 < 1 && d22 < 1 {
			return 6
		}
	case daily == 5:
		if l > m && m > s {
			return 4
		}
	}
	return 0
}

func (r *mainLong) TakeProfitPolicy(set model.OpenConditionSet) int {
	daily, h3 := set.Code(model.Daily), set.Code(model.Hour3)
	switch {
	case oneOf(daily, 1, 2):
		return 1
	case daily == 5:
		return 2
	case daily == 3 && h3 == 6:
		return 3
	case oneOf(daily, 3, 4) && h3 == 3:
		return 4
	}
	return 0
}

// mainShort 主策略做空
type mainShort struct {
	gap DailyGapRule
}

func NewMainShort(opts Options) RuleSet {
	return &mainShort{gap: DailyGapRule{
		Limit:           opts.DailyGapLimit,
		WideLimit:       opts.DailyGapWideLimit,
		WideDiff:        opts.DailyGapWideDiff,
		SessionOpenHour: opts.SessionOpenHour,
	}}
}

func (r *mainShort) Direction() model.Direction { return model.Short }
func (r *mainShort) Variant() model.StrategyVariant { return model.Primary }
func (r *mainShort) Timeframes() []model.Timeframe { return primaryTimeframes }

func (r *mainShort) Lookback(tf model.Timeframe) int {
	if tf == model.Minute30 {
		return 120
	}
	return 1
}

func (r *mainShort) Match(tf model.Timeframe, in Input) int {
	c := in.Current()
	s, m, l := c.EmaShort, c.EmaMid, c.EmaLong
	d9, d22 := diff(s, l), diff(m, l)

	switch tf {
	case model.Daily:
		if m > l && c.Oscillator < 0 && m > c.Close {
			// 均线距离过近且收盘仍在长均线之上
			if (d9 < 2 || d22 < 2) && l < c.Close {
				return 0
			}
			return 1
		}
	case model.Hour3:
		if m > l && (m > s || m < s && c.Close < l && c.Open > l) &&
			d9 < 3 && d22 < 3 && diff(c.Close, l) < 3 && c.Oscillator < 0 {
			return 1
		}
	case model.Minute30:
		if (l > m && m > s || m > l && l > s) && d9 < 2 && d22 < 1 &&
			c.Oscillator < 0 && l > c.Close && r.gap.Check(in.Series, in.Daily) {
			return 1
		}
	case model.Minute5:
		return 1
	}
	return 0
}

func (r *mainShort) TakeProfitPolicy(model.OpenConditionSet) int {
	return 1
}
