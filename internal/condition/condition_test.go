package condition

import (
	"futureflow/internal/kline"
	"futureflow/internal/model"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingRules struct {
	calls    int
	code     int
	lookback int
}

func (r *countingRules) Direction() model.Direction { return model.Long }
func (r *countingRules) Variant() model.StrategyVariant { return model.Primary }
func (r *countingRules) Timeframes() []model.Timeframe { return []model.Timeframe{model.Minute30} }
func (r *countingRules) Lookback(model.Timeframe) int { return r.lookback }
func (r *countingRules) TakeProfitPolicy(model.OpenConditionSet) int { return 0 }

func (r *countingRules) Match(model.Timeframe, Input) int {
	r.calls++
	return r.code
}

func bars(n int) []model.Bar {
	out := make([]model.Bar, n)
	for i := range out {
		c := 3500 + 30*math.Sin(float64(i)/5)
		out[i] = model.Bar{Timestamp: t0.Add(time.Duration(i) * 30 * time.Minute), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return out
}

func TestEvaluator_Memoization(t *testing.T) {
	rules := &countingRules{code: 3, lookback: 1}
	e := NewEvaluator(zaptest.NewLogger(t).Sugar(), rules)

	bs := bars(101)
	cache := kline.NewCache("SHFE.rb2410", kline.MainParams, 0)
	require.NoError(t, cache.Load(model.Minute30, bs[:100]))

	m1 := e.Evaluate(model.Minute30, model.Long, model.Primary, cache, nil)
	m2 := e.Evaluate(model.Minute30, model.Long, model.Primary, cache, nil)
	assert.Equal(t, 3, m1.Code)
	assert.Equal(t, m1, m2)
	assert.Equal(t, 1, rules.calls)
	assert.True(t, bs[98].Timestamp.Equal(m1.Snapshot.Timestamp))

	// 形成中的K线变化不影响已收盘K线的结果
	forming := bs[99]
	forming.Close += 50
	_, err := cache.Update(model.Minute30, forming)
	require.NoError(t, err)
	e.Evaluate(model.Minute30, model.Long, model.Primary, cache, nil)
	assert.Equal(t, 1, rules.calls)

	_, err = cache.Update(model.Minute30, bs[100])
	require.NoError(t, err)
	m3 := e.Evaluate(model.Minute30, model.Long, model.Primary, cache, nil)
	assert.Equal(t, 2, rules.calls)
	assert.True(t, bs[99].Timestamp.Equal(m3.Snapshot.Timestamp))
}

func TestEvaluator_InsufficientHistory(t *testing.T) {
	rules := &countingRules{code: 1, lookback: 1}
	e := NewEvaluator(zaptest.NewLogger(t).Sugar(), rules)

	cache := kline.NewCache("x", kline.MainParams, 0)
	m := e.Evaluate(model.Minute30, model.Long, model.Primary, cache, nil)
	assert.False(t, m.Matched())

	// 只有一根形成中的K线
	require.NoError(t, cache.Load(model.Minute30, bars(1)))
	m = e.Evaluate(model.Minute30, model.Long, model.Primary, cache, nil)
	assert.False(t, m.Matched())
	assert.Equal(t, 0, rules.calls)
	assert.Equal(t, 0, cache.MemoSize())

	rules.lookback = 500
	require.NoError(t, cache.Load(model.Minute30, bars(100)))
	m = e.Evaluate(model.Minute30, model.Long, model.Primary, cache, nil)
	assert.False(t, m.Matched())
	assert.Equal(t, 0, rules.calls)

	// 未注册的方向
	m = e.Evaluate(model.Minute30, model.Short, model.Primary, cache, nil)
	assert.False(t, m.Matched())
}
