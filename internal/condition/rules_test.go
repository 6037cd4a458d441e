package condition

import (
	"futureflow/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = at("2024-05-06 09:00")

func TestBottomLong_DailyAscendingMacdPositive(t *testing.T) {
	rs := NewBottomLong(DefaultOptions())
	o := obs(t0, 98.5, 99, 98, 100, 102, 0.5)
	assert.Equal(t, 1, rs.Match(model.Daily, one(o)))

	// MACD 未同向仍满足日线，条件编号为2
	o.Oscillator = -0.5
	assert.Equal(t, 2, rs.Match(model.Daily, one(o)))

	// 收盘价跌回短均线下方
	o.Close = 97
	assert.Equal(t, 0, rs.Match(model.Daily, one(o)))
}

func TestBottomShort_Mirror(t *testing.T) {
	rs := NewBottomShort(DefaultOptions())
	o := obs(t0, 101.5, 101, 102, 100, 98, -0.5)
	assert.Equal(t, 1, rs.Match(model.Daily, one(o)))
	o.Oscillator = 0.5
	assert.Equal(t, 2, rs.Match(model.Daily, one(o)))

	assert.Equal(t, 1, rs.Match(model.Hour3, one(obs(t0, 0, 0, 0, 0, 0, -0.1))))
	assert.Equal(t, 0, rs.Match(model.Hour3, one(obs(t0, 0, 0, 0, 0, 0, 0.1))))
}

func TestBottom_Minute30Recency(t *testing.T) {
	rs := NewBottomLong(DefaultOptions())

	// 12根K线，第7根(下标6)仍在长均线下方，锚点为下标7，距离4
	series := flat(t0, 12, 101, 100.5, 100.2, 100)
	series[6].Close = 99
	assert.Equal(t, 1, rs.Match(model.Minute30, Input{Series: series, Upstream: withDaily(2)}))

	// 距离5，严格模式不满足
	series = flat(t0, 12, 101, 100.5, 100.2, 100)
	series[5].Close = 99
	assert.Equal(t, 0, rs.Match(model.Minute30, Input{Series: series, Upstream: withDaily(2)}))

	opts := DefaultOptions()
	opts.Inclusive = true
	assert.Equal(t, 1, NewBottomLong(opts).Match(model.Minute30, Input{Series: series, Upstream: withDaily(2)}))

	// 当前K线本身不在长均线上方
	series[11].Close = 99.9
	assert.Equal(t, 0, rs.Match(model.Minute30, Input{Series: series, Upstream: withDaily(2)}))
}

func TestMainLong_Daily(t *testing.T) {
	rs := NewMainLong(DefaultOptions())
	cases := []struct {
		name string
		o    model.CandleObservation
		code int
	}{
		{"cond1", obs(t0, 100.5, 101, 99.5, 99, 100, 1), 1},
		{"cond1 macd negative", obs(t0, 100.5, 101, 99.5, 99, 100, -1), 0},
		{"cond2", obs(t0, 100.5, 101, 100.2, 100.5, 100, -1), 2},
		{"cond3", obs(t0, 101.2, 101.4, 102, 101.5, 100, 1), 3},
		{"cond4", obs(t0, 101, 101, 101.5, 102, 100, 1), 4},
		{"cond5", obs(t0, 101, 102, 103, 104, 100, 1), 5},
		{"mid equals long", obs(t0, 101, 102, 103, 100, 100, 1), 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, rs.Match(model.Daily, one(c.o)), c.name)
	}
}

func TestMainLong_Hour3(t *testing.T) {
	rs := NewMainLong(DefaultOptions())

	// 日线未匹配时任何3小时条件都不成立
	o := obs(t0, 100, 100.5, 99, 99.5, 100, 1)
	assert.Equal(t, 0, rs.Match(model.Hour3, Input{Series: []model.CandleObservation{o}}))
	assert.Equal(t, 1, rs.Match(model.Hour3, Input{Series: []model.CandleObservation{o}, Upstream: withDaily(1)}))

	// 收盘与开盘离长均线都太远
	far := obs(t0, 110, 110, 99, 99.5, 100, 1)
	assert.Equal(t, 0, rs.Match(model.Hour3, Input{Series: []model.CandleObservation{far}, Upstream: withDaily(1)}))

	// 条件2：两次交叉距离1
	series := []model.CandleObservation{
		obs(t0, 100, 100, 99, 99, 100, 1),
		obs(t0.Add(3*time.Hour), 100, 100, 100.5, 99.8, 100, 1),
		obs(t0.Add(6*time.Hour), 101, 103, 102, 101, 100, 1),
	}
	assert.Equal(t, 2, rs.Match(model.Hour3, Input{Series: series, Upstream: withDaily(2)}))

	// 两次交叉距离过大，且不会落入条件5
	long := make([]model.CandleObservation, 0, 10)
	long = append(long, obs(t0, 100, 100, 99, 99, 100, 1))
	for i := 0; i < 7; i++ {
		long = append(long, obs(t0, 100, 100, 100.5, 100.2, 100, 1))
	}
	long = append(long, obs(t0, 100, 100, 100.5, 99.9, 100, 1))
	long = append(long, obs(t0, 101, 103, 102, 101, 100, 1))
	// k1=8 k2=0
	assert.Equal(t, 0, rs.Match(model.Hour3, Input{Series: long, Upstream: withDaily(1)}))

	cond3 := obs(t0, 100.5, 100.8, 99.5, 99.6, 100, 1)
	assert.Equal(t, 3, rs.Match(model.Hour3, Input{Series: []model.CandleObservation{cond3}, Upstream: withDaily(4)}))

	cond6 := obs(t0, 100.5, 100.8, 100.5, 100.6, 100, -1)
	assert.Equal(t, 6, rs.Match(model.Hour3, Input{Series: []model.CandleObservation{cond6}, Upstream: withDaily(3)}))
	assert.Equal(t, 0, rs.Match(model.Hour3, Input{Series: []model.CandleObservation{cond6}, Upstream: withDaily(4)}))

	cond4 := obs(t0, 99, 99, 97, 98, 100, -1)
	assert.Equal(t, 4, rs.Match(model.Hour3, Input{Series: []model.CandleObservation{cond4}, Upstream: withDaily(5)}))
}

func TestMainLong_Minutes(t *testing.T) {
	rs := NewMainLong(DefaultOptions())
	ok := obs(t0, 100, 101, 100, 100, 100, 0.2)
	assert.Equal(t, 1, rs.Match(model.Minute30, one(ok)))
	assert.Equal(t, 1, rs.Match(model.Minute5, one(ok)))

	tooFar := obs(t0, 100, 101.5, 100, 100, 100, 0.2)
	assert.Equal(t, 0, rs.Match(model.Minute30, one(tooFar)))
}

func TestMainLong_TakeProfitPolicy(t *testing.T) {
	rs := NewMainLong(DefaultOptions())
	set := func(d, h int) model.OpenConditionSet {
		return model.OpenConditionSet{{Timeframe: model.Daily, Code: d}, {Timeframe: model.Hour3, Code: h}}
	}
	assert.Equal(t, 1, rs.TakeProfitPolicy(set(1, 2)))
	assert.Equal(t, 1, rs.TakeProfitPolicy(set(2, 5)))
	assert.Equal(t, 2, rs.TakeProfitPolicy(set(5, 4)))
	assert.Equal(t, 3, rs.TakeProfitPolicy(set(3, 6)))
	assert.Equal(t, 4, rs.TakeProfitPolicy(set(3, 3)))
	assert.Equal(t, 4, rs.TakeProfitPolicy(set(4, 3)))
	assert.Equal(t, 0, rs.TakeProfitPolicy(set(4, 6)))
}

func TestMainShort(t *testing.T) {
	rs := NewMainShort(DefaultOptions())

	// 短均线离长均线过近且收盘仍在长均线之上
	blocked := obs(t0, 101, 101, 101, 102, 100, -1)
	assert.Equal(t, 0, rs.Match(model.Daily, one(blocked)))
	ok := obs(t0, 101, 99, 101, 102, 100, -1)
	assert.Equal(t, 1, rs.Match(model.Daily, one(ok)))

	h3 := obs(t0, 100.5, 100.2, 100.5, 101, 100, -0.3)
	assert.Equal(t, 1, rs.Match(model.Hour3, one(h3)))
	h3.Oscillator = 0.3
	assert.Equal(t, 0, rs.Match(model.Hour3, one(h3)))

	assert.Equal(t, 1, rs.Match(model.Minute5, one(obs(t0, 0, 0, 0, 0, 0, 0))))
	assert.Equal(t, 1, rs.TakeProfitPolicy(nil))
}

func TestDefaultRuleSets(t *testing.T) {
	e := NewEvaluator(nil, DefaultRuleSets(DefaultOptions())...)
	for _, dir := range []model.Direction{model.Long, model.Short} {
		for _, v := range []model.StrategyVariant{model.Primary, model.Exploratory} {
			rs, ok := e.RuleSet(dir, v)
			assert.True(t, ok)
			assert.Equal(t, dir, rs.Direction())
			assert.Equal(t, v, rs.Variant())
		}
	}
	primary, _ := e.RuleSet(model.Long, model.Primary)
	assert.Len(t, primary.Timeframes(), 4)
	bottom, _ := e.RuleSet(model.Long, model.Exploratory)
	assert.Len(t, bottom.Timeframes(), 3)
}
