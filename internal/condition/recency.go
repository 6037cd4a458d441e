package condition

import (
	"futureflow/internal/contract"
	"futureflow/internal/model"
	"time"
)

// Options 近期性规则参数
type Options struct {
	// 摸底策略30分钟：锚点到当前K线的最大距离
	BarDistance int `yaml:"bar-distance"`
	// true 时距离允许等于 BarDistance
	Inclusive bool `yaml:"inclusive"`
	// 夜盘开盘小时
	SessionOpenHour int `yaml:"session-open-hour"`
	// 主策略做空30分钟：交叉所在日线与当前日线的间隔
	DailyGapLimit     int     `yaml:"daily-gap-limit"`
	DailyGapWideLimit int     `yaml:"daily-gap-wide-limit"`
	DailyGapWideDiff  float64 `yaml:"daily-gap-wide-diff"`
	// 主策略做多3小时条件2：两次交叉的最大距离
	CrossingMaxGap int `yaml:"crossing-max-gap"`
}

func DefaultOptions() Options {
	return Options{
		BarDistance:       5,
		SessionOpenHour:   21,
		DailyGapLimit:     2,
		DailyGapWideLimit: 3,
		DailyGapWideDiff:  5,
		CrossingMaxGap:    5,
	}
}

// crossFunc 判断K线是否处在穿越均线的一侧
type crossFunc func(o model.CandleObservation) bool

// findAnchor 从 matched 前一根开始向前查找第一根穿越K线，锚点为其后一根
// 找不到时取窗口中第10根K线，窗口不足10根返回 -1
func findAnchor(series []model.CandleObservation, matched int, crossed crossFunc) int {
	for i := matched - 1; i >= 0; i-- {
		if crossed(series[i]) {
			return i + 1
		}
	}
	if matched >= 10 {
		return 9
	}
	return -1
}

// BarDistanceRule 锚点与当前K线的根数距离
type BarDistanceRule struct {
	MaxBars   int
	Inclusive bool
}

func (r BarDistanceRule) Check(series []model.CandleObservation, crossed crossFunc) bool {
	matched := len(series) - 1
	anchor := findAnchor(series, matched, crossed)
	if anchor < 0 {
		return false
	}
	gap := matched - anchor
	if r.Inclusive {
		return gap <= r.MaxBars
	}
	return gap < r.MaxBars
}

// SameSessionRule 锚点必须在当前K线所属交易日的夜盘开盘之后
type SameSessionRule struct {
	SessionOpenHour int
}

func (r SameSessionRule) Check(series []model.CandleObservation, crossed crossFunc) bool {
	matched := len(series) - 1
	anchor := findAnchor(series, matched, crossed)
	if anchor < 0 {
		return false
	}
	t := series[matched].Timestamp.In(contract.ChinaZone)
	open := time.Date(t.Year(), t.Month(), t.Day(), r.SessionOpenHour, 0, 0, 0, contract.ChinaZone).AddDate(0, 0, -1)
	return !series[anchor].Timestamp.Before(open)
}

// DailyGapRule 最近一次30分钟收盘价与长均线交叉所在的日线，距当前日线不超过 Limit 根
type DailyGapRule struct {
	Limit           int
	WideLimit       int
	WideDiff        float64
	SessionOpenHour int
}

func (r DailyGapRule) Check(series, daily []model.CandleObservation) bool {
	if len(series) == 0 || len(daily) < 2 {
		return false
	}
	anchor := -1
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].Close < series[i].EmaLong {
			continue
		}
		// 最新一根K线仍未跌破长均线
		if i == len(series)-1 {
			return false
		}
		next := series[i+1]
		if next.EmaMid > next.EmaLong {
			anchor = i + 1
			break
		}
	}
	if anchor < 0 {
		return false
	}

	day := tradingDay(series[anchor].Timestamp, r.SessionOpenHour)
	idx := -1
	for i := range daily {
		if daily[i].Timestamp.After(day) {
			break
		}
		idx = i
	}
	if idx < 0 {
		return false
	}

	limit := r.Limit
	last := daily[len(daily)-2]
	d := diff(last.EmaMid, last.EmaLong)
	if d != 0 && last.Close < last.EmaLong || d > r.WideDiff {
		limit = r.WideLimit
	}
	return len(daily)-1-idx <= limit
}

// tradingDay K线所属交易日的零点，openHour 之后归入下一日
func tradingDay(t time.Time, openHour int) time.Time {
	t = t.In(contract.ChinaZone)
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, contract.ChinaZone)
	if t.Hour() >= openHour {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// CrossingRule 主策略3小时条件2：
// 向前查找 中均线<=长均线 的第一根(k1) 与 短均线<=长均线 的第一根(k2)，0 <= k1-k2 <= MaxGap
type CrossingRule struct {
	MaxGap int
}

func (r CrossingRule) Check(series []model.CandleObservation) bool {
	k1, k2 := -1, -1
	for i := len(series) - 1; i >= 0; i-- {
		o := series[i]
		if k1 < 0 && o.EmaMid <= o.EmaLong {
			k1 = i
		}
		if o.EmaShort <= o.EmaLong {
			k2 = i
			break
		}
	}
	gap := k1 - k2
	return gap >= 0 && gap <= r.MaxGap
}
