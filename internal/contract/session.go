package contract

import "time"

// 交易所时间为东八区
var ChinaZone = time.FixedZone("CST", 8*3600)

// TradeDate 交易日，19:00 之后归入下一交易日
func TradeDate(t time.Time) time.Time {
	t = t.In(ChinaZone)
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, ChinaZone)
	if t.Hour() >= 19 {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func IsWeekend(t time.Time) bool {
	wd := t.In(ChinaZone).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// InTradingHours 15:00 - 20:45 以及周末不交易
func InTradingHours(t time.Time) bool {
	t = t.In(ChinaZone)
	if IsWeekend(t) {
		return false
	}
	h, m := t.Hour(), t.Minute()
	if h >= 15 && h < 20 || h == 20 && m < 45 {
		return false
	}
	return true
}

// InPreMarket 盘前操作时段：19:15 之后
func InPreMarket(t time.Time) bool {
	t = t.In(ChinaZone)
	if IsWeekend(t) {
		return false
	}
	h, m := t.Hour(), t.Minute()
	return h > 19 && h < 21 || h == 19 && m >= 15
}

// InWindow 判断时刻是否落在 [start, end) 之间，格式 15:04
func InWindow(t time.Time, start, end string) bool {
	t = t.In(ChinaZone)
	s, err1 := time.ParseInLocation("15:04", start, ChinaZone)
	e, err2 := time.ParseInLocation("15:04", end, ChinaZone)
	if err1 != nil || err2 != nil {
		return false
	}
	cur := t.Hour()*60 + t.Minute()
	return cur >= s.Hour()*60+s.Minute() && cur < e.Hour()*60+e.Minute()
}
