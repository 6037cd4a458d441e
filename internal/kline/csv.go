package kline

import (
	"encoding/csv"
	"fmt"
	"futureflow/internal/model"
	"io"
	"os"
	"strconv"
	"time"
)

var csvHeader = []string{"timestamp", "datetime", "open", "high", "low", "close", "volume"}

// WriteCSV 导出K线，便于回放与排查
func WriteCSV(w io.Writer, bars []model.Bar) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, k := range bars {
		record := []string{
			strconv.FormatInt(k.Timestamp.UnixMilli(), 10),
			k.Timestamp.Format("2006-01-02 15:04:05"),
			strconv.FormatFloat(k.Open, 'f', -1, 64),
			strconv.FormatFloat(k.High, 'f', -1, 64),
			strconv.FormatFloat(k.Low, 'f', -1, 64),
			strconv.FormatFloat(k.Close, 'f', -1, 64),
			strconv.FormatFloat(k.Volume, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSV 读取 WriteCSV 导出的K线
func ReadCSV(r io.Reader) ([]model.Bar, error) {
	reader := csv.NewReader(r)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	bars := make([]model.Bar, 0, len(rows))
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == csvHeader[0] {
			continue
		}
		if len(row) < len(csvHeader) {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", i+1, len(csvHeader), len(row))
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		var vals [5]float64
		for j := range vals {
			if vals[j], err = strconv.ParseFloat(row[2+j], 64); err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
		}
		bars = append(bars, model.Bar{
			Timestamp: time.UnixMilli(ms),
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return bars, nil
}

func ReadCSVFile(path string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}
