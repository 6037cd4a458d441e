package kline

import (
	"bytes"
	"futureflow/internal/model"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func genBars(n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		c := 3500 + 40*math.Sin(float64(i)/7) + float64(i)*0.8
		bars[i] = model.Bar{
			Timestamp: base.Add(time.Duration(i) * 30 * time.Minute),
			Open:      c - 2,
			High:      c + 5,
			Low:       c - 6,
			Close:     c,
			Volume:    float64(100 + i),
		}
	}
	return bars
}

// ewm 按 ewm(span=period, adjust=False) 逐个计算，首值为输入本身
func ewm(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	k := 2.0 / float64(period+1)
	for i, x := range xs {
		if i == 0 {
			out[i] = x
			continue
		}
		out[i] = (x-out[i-1])*k + out[i-1]
	}
	return out
}

// reference 直接按公式计算整段序列
func reference(p Params, bars []model.Bar) (short, mid, long, osc []float64) {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	short = ewm(closes, p.Short)
	mid = ewm(closes, p.Mid)
	long = ewm(closes, p.Long)
	fast := ewm(closes, p.Fast)
	slow := ewm(closes, p.Slow)
	dif := make([]float64, len(closes))
	for i := range dif {
		dif[i] = fast[i] - slow[i]
	}
	dea := ewm(dif, p.Signal)
	osc = make([]float64, len(closes))
	for i := range osc {
		osc[i] = 2 * (dif[i] - dea[i])
	}
	return
}

func TestCache_LoadMatchesEwm(t *testing.T) {
	bars := genBars(100)
	c := NewCache("SHFE.rb2410", MainParams, 0)
	require.NoError(t, c.Load(model.Daily, bars))

	short, mid, long, osc := reference(MainParams, bars)
	window := c.Window(model.Daily, 0)
	require.Len(t, window, 100)
	for i, o := range window {
		assert.InDelta(t, short[i], o.EmaShort, 1e-6, "short %d", i)
		assert.InDelta(t, mid[i], o.EmaMid, 1e-6, "mid %d", i)
		assert.InDelta(t, long[i], o.EmaLong, 1e-6, "long %d", i)
		assert.InDelta(t, osc[i], o.Oscillator, 1e-6, "osc %d", i)
		assert.True(t, o.Ready(), "bar %d", i)
	}
}

func TestCache_IncrementalMatchesEwm(t *testing.T) {
	bars := genBars(150)
	c := NewCache("SHFE.rb2410", MainParams, 0)
	require.NoError(t, c.Load(model.Minute30, bars[:100]))
	for _, b := range bars[100:] {
		isNew, err := c.Update(model.Minute30, b)
		require.NoError(t, err)
		assert.True(t, isNew)
	}

	short, mid, long, osc := reference(MainParams, bars)
	window := c.Window(model.Minute30, 0)
	require.Len(t, window, 150)
	for i, o := range window {
		assert.InDelta(t, short[i], o.EmaShort, 1e-6, "short %d", i)
		assert.InDelta(t, mid[i], o.EmaMid, 1e-6, "mid %d", i)
		assert.InDelta(t, long[i], o.EmaLong, 1e-6, "long %d", i)
		assert.InDelta(t, osc[i], o.Oscillator, 1e-6, "osc %d", i)
	}
}

func TestCache_LoadMatchesIncremental(t *testing.T) {
	bars := genBars(120)
	loaded := NewCache("x", BottomParams, 0)
	require.NoError(t, loaded.Load(model.Daily, bars))

	inc := NewCache("x", BottomParams, 0)
	for _, b := range bars {
		_, err := inc.Update(model.Daily, b)
		require.NoError(t, err)
	}

	a := loaded.Window(model.Daily, 0)
	b := inc.Window(model.Daily, 0)
	require.Equal(t, len(a), len(b))
	for i := range a {
		if !a[i].Ready() {
			assert.False(t, b[i].Ready(), "bar %d", i)
			continue
		}
		assert.InDelta(t, a[i].EmaLong, b[i].EmaLong, 1e-9)
		assert.InDelta(t, a[i].Oscillator, b[i].Oscillator, 1e-9)
	}
}

func TestCache_FirstBarSeedsIndicators(t *testing.T) {
	bars := genBars(3)
	c := NewCache("x", MainParams, 0)
	require.NoError(t, c.Load(model.Hour3, bars))

	w := c.Window(model.Hour3, 0)
	require.Len(t, w, 3)
	assert.True(t, w[0].Ready())
	assert.InDelta(t, bars[0].Close, w[0].EmaShort, 1e-9)
	assert.InDelta(t, bars[0].Close, w[0].EmaLong, 1e-9)
	assert.InDelta(t, 0, w[0].Oscillator, 1e-9)

	k := 2.0 / float64(MainParams.Long+1)
	assert.InDelta(t, (bars[1].Close-bars[0].Close)*k+bars[0].Close, w[1].EmaLong, 1e-9)
}

func TestCache_OverwriteFormingBar(t *testing.T) {
	bars := genBars(90)
	c := NewCache("x", MainParams, 0)
	require.NoError(t, c.Load(model.Minute5, bars))

	forming := bars[89]
	forming.Close += 25
	isNew, err := c.Update(model.Minute5, forming)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.False(t, c.IsNewBar(model.Minute5))
	assert.Equal(t, 90, c.Len(model.Minute5))

	expect := append(append([]model.Bar(nil), bars[:89]...), forming)
	short, _, long, osc := reference(MainParams, expect)
	latest, ok := c.Latest(model.Minute5)
	require.True(t, ok)
	assert.InDelta(t, short[89], latest.EmaShort, 1e-6)
	assert.InDelta(t, long[89], latest.EmaLong, 1e-6)
	assert.InDelta(t, osc[89], latest.Oscillator, 1e-6)

	closed, ok := c.LastClosed(model.Minute5)
	require.True(t, ok)
	assert.Equal(t, bars[88].Timestamp, closed.Timestamp)
	assert.Len(t, c.ClosedWindow(model.Minute5, 0), 89)
	assert.Len(t, c.ClosedWindow(model.Minute5, 10), 10)
}

func TestCache_RejectsOutOfOrder(t *testing.T) {
	bars := genBars(10)
	c := NewCache("x", MainParams, 0)
	require.NoError(t, c.Load(model.Daily, bars))

	_, err := c.Update(model.Daily, bars[3])
	assert.Error(t, err)

	rev := []model.Bar{bars[2], bars[1]}
	assert.Error(t, c.Load(model.Daily, rev))
}

func TestCache_IsNewBar(t *testing.T) {
	bars := genBars(3)
	c := NewCache("x", MainParams, 0)
	assert.False(t, c.IsNewBar(model.Minute30))

	_, err := c.Update(model.Minute30, bars[0])
	require.NoError(t, err)
	assert.True(t, c.IsNewBar(model.Minute30))

	_, err = c.Update(model.Minute30, bars[0])
	require.NoError(t, err)
	assert.False(t, c.IsNewBar(model.Minute30))

	_, err = c.Update(model.Minute30, bars[1])
	require.NoError(t, err)
	assert.True(t, c.IsNewBar(model.Minute30))
}

func TestCache_CapacityEvictsMemo(t *testing.T) {
	bars := genBars(12)
	c := NewCache("x", MainParams, 10)
	require.NoError(t, c.Load(model.Minute30, bars[:10]))

	key := MemoKey{Timeframe: model.Minute30, Direction: model.Long, Variant: model.Primary, Timestamp: bars[0].Timestamp}
	c.Remember(key, model.ConditionMatch{Code: 1})
	keep := key
	keep.Timestamp = bars[5].Timestamp
	c.Remember(keep, model.ConditionMatch{Code: 2})

	_, err := c.Update(model.Minute30, bars[10])
	require.NoError(t, err)
	assert.Equal(t, 10, c.Len(model.Minute30))

	_, ok := c.Memo(key)
	assert.False(t, ok)
	m, ok := c.Memo(keep)
	require.True(t, ok)
	assert.Equal(t, 2, m.Code)
}

func TestCSVRoundTrip(t *testing.T) {
	bars := genBars(5)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, bars))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i := range bars {
		assert.True(t, bars[i].Timestamp.Equal(got[i].Timestamp))
		assert.Equal(t, bars[i].Close, got[i].Close)
	}
}
