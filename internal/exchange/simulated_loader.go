package exchange

import (
	"errors"
	"fmt"
	"futureflow/internal/kline"
	"futureflow/internal/model"
	"io/fs"
	"os"
	"path/filepath"
)

// CSVPath 模拟数据文件名 <dir>/<symbol>_<周期>.csv
func CSVPath(dir, symbol string, tf model.Timeframe) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.csv", symbol, tf))
}

// LoadCSVDir 加载某个合约各周期的K线文件，缺失的周期跳过
// 行情取最小周期最后一根K线的收盘价，返回加载的周期数
func (s *SimulatedExchange) LoadCSVDir(dir, symbol string, expireRestDays int) (int, error) {
	loaded := 0
	var last model.Bar
	for _, tf := range model.AllTimeframes() {
		bars, err := kline.ReadCSVFile(CSVPath(dir, symbol, tf))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return loaded, fmt.Errorf("load %s %s: %w", symbol, tf, err)
		}
		if len(bars) == 0 {
			continue
		}
		s.LoadBars(symbol, tf, bars)
		last = bars[len(bars)-1]
		loaded++
	}
	if loaded == 0 {
		return 0, fmt.Errorf("no candle files for %s in %s: %w", symbol, dir, os.ErrNotExist)
	}
	s.SetQuote(model.Quote{
		Symbol:         symbol,
		LastPrice:      last.Close,
		BidPrice1:      last.Close,
		AskPrice1:      last.Close,
		Timestamp:      last.Timestamp,
		ExpireRestDays: expireRestDays,
	})
	return loaded, nil
}
