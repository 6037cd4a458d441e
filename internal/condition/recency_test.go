package condition

import (
	"futureflow/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func closeBelow(o model.CandleObservation) bool {
	return o.Close <= o.EmaLong
}

func TestFindAnchor(t *testing.T) {
	series := flat(t0, 12, 101, 101, 101, 100)
	assert.Equal(t, 9, findAnchor(series, 11, closeBelow))
	assert.Equal(t, -1, findAnchor(series[:5], 4, closeBelow))

	series[10].Close = 99
	assert.Equal(t, 11, findAnchor(series, 11, closeBelow))
}

func TestBarDistanceRule(t *testing.T) {
	series := flat(t0, 12, 101, 101, 101, 100)
	series[5].Close = 99

	assert.False(t, BarDistanceRule{MaxBars: 5}.Check(series, closeBelow))
	assert.True(t, BarDistanceRule{MaxBars: 5, Inclusive: true}.Check(series, closeBelow))

	series[6].Close = 99
	assert.True(t, BarDistanceRule{MaxBars: 5}.Check(series, closeBelow))
	assert.True(t, BarDistanceRule{MaxBars: 5, Inclusive: true}.Check(series, closeBelow))

	assert.False(t, BarDistanceRule{MaxBars: 5}.Check(series[:4], closeBelow))
}

func TestSameSessionRule(t *testing.T) {
	rule := SameSessionRule{SessionOpenHour: 21}
	mk := func(anchor time.Time) []model.CandleObservation {
		series := flat(anchor.Add(-3*time.Hour), 6, 101, 101, 101, 100)
		series[2].Close = 99
		series[3].Timestamp = anchor
		series[4].Timestamp = anchor.Add(time.Hour)
		series[5].Timestamp = at("2024-05-08 10:00")
		return series
	}

	assert.True(t, rule.Check(mk(at("2024-05-07 21:30")), closeBelow))
	assert.True(t, rule.Check(mk(at("2024-05-07 21:00")), closeBelow))
	assert.False(t, rule.Check(mk(at("2024-05-07 14:30")), closeBelow))
}

func TestDailyGapRule(t *testing.T) {
	rule := DailyGapRule{Limit: 2, WideLimit: 3, WideDiff: 5, SessionOpenHour: 21}

	daily := []model.CandleObservation{
		obs(at("2024-05-06 00:00"), 100, 100, 100, 100, 100, 0),
		obs(at("2024-05-07 00:00"), 100, 100, 100, 100, 100, 0),
		obs(at("2024-05-08 00:00"), 100, 100, 100, 100, 100, 0),
		obs(at("2024-05-09 00:00"), 101, 102, 101, 101, 100, 0),
		obs(at("2024-05-10 00:00"), 100, 100, 100, 100, 100, 0),
	}
	m30 := func(anchor time.Time) []model.CandleObservation {
		return []model.CandleObservation{
			obs(anchor.Add(-30*time.Minute), 101, 101, 99, 99, 100, -0.1),
			obs(anchor, 99, 99, 99, 100.5, 100, -0.1),
			obs(anchor.Add(30*time.Minute), 99, 99, 99, 100.5, 100, -0.1),
			obs(anchor.Add(60*time.Minute), 99, 99, 99, 100.5, 100, -0.1),
		}
	}

	assert.True(t, rule.Check(m30(at("2024-05-08 10:00")), daily))
	// 夜盘K线归入下一交易日
	assert.True(t, rule.Check(m30(at("2024-05-07 22:00")), daily))
	assert.False(t, rule.Check(m30(at("2024-05-07 10:00")), daily))

	// 上一日线收盘在长均线下方时放宽到3日
	wide := append([]model.CandleObservation(nil), daily...)
	wide[3].Close = 99
	assert.True(t, rule.Check(m30(at("2024-05-07 10:00")), wide))

	// 最新一根K线仍在长均线上方
	series := m30(at("2024-05-08 10:00"))
	series[3].Close = 101
	assert.False(t, rule.Check(series, daily))

	// 交叉后一根的中均线不在长均线上方
	series = m30(at("2024-05-08 10:00"))
	series[1].EmaMid = 99
	assert.False(t, rule.Check(series, daily))

	assert.False(t, rule.Check(m30(at("2024-05-08 10:00")), daily[:1]))
}

func TestCrossingRule(t *testing.T) {
	rule := CrossingRule{MaxGap: 5}
	// 均未交叉
	assert.True(t, rule.Check(flat(t0, 5, 103, 102, 101, 100)))

	// 短均线先于中均线交叉
	series := flat(t0, 5, 103, 102, 101, 100)
	series[3].EmaShort = 99
	assert.False(t, rule.Check(series))

	series = flat(t0, 5, 103, 102, 101, 100)
	series[3].EmaMid = 99
	series[3].EmaShort = 99
	assert.True(t, rule.Check(series))
}
