package condition

import (
	"futureflow/internal/contract"
	"futureflow/internal/model"
	"time"
)

func obs(ts time.Time, open, close, s, m, l, osc float64) model.CandleObservation {
	return model.CandleObservation{
		Timestamp:  ts,
		Open:       open,
		Close:      close,
		EmaShort:   s,
		EmaMid:     m,
		EmaLong:    l,
		Oscillator: osc,
	}
}

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, contract.ChinaZone)
	if err != nil {
		panic(err)
	}
	return t
}

func one(o model.CandleObservation) Input {
	return Input{Series: []model.CandleObservation{o}}
}

func withDaily(code int) model.OpenConditionSet {
	return model.OpenConditionSet{{Timeframe: model.Daily, Code: code}}
}

// flat 生成 n 根均线排列不变的30分钟K线
func flat(start time.Time, n int, close, s, m, l float64) []model.CandleObservation {
	out := make([]model.CandleObservation, n)
	for i := range out {
		out[i] = obs(start.Add(time.Duration(i)*30*time.Minute), close, close, s, m, l, 0.1)
	}
	return out
}
