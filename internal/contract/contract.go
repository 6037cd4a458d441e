package contract

import (
	"fmt"
	"futureflow/internal/model"
	"regexp"
	"strconv"
	"strings"
)

const continuousPrefix = "KQ.m@"

var symbolPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(CFFEX)\.([A-Z]{1,2})(\d{4})$`),
	regexp.MustCompile(`^(CZCE)\.([A-Z]{2})(\d{3})$`),
	regexp.MustCompile(`^(DCE)\.([a-z]{1,2})(\d{4})$`),
	regexp.MustCompile(`^(INE)\.([a-z]{2})(\d{4})$`),
	regexp.MustCompile(`^(SHFE)\.([a-z]{2})(\d{4})$`),
	regexp.MustCompile(`^(GFEX)\.([a-z]{2})(\d{4})$`),
}

var continuousPattern = regexp.MustCompile(`^KQ\.m@(CFFEX|CZCE|DCE|INE|SHFE|GFEX)\.(\w{1,2})$`)

// Symbol 具体合约，例如 SHFE.rb2410 / CZCE.SA405
type Symbol struct {
	Exchange string
	Product  string
	Year     int // 两位年份，郑商所为一位
	Month    int
	digits   int // 到期编码长度 3 或 4
}

func Parse(s string) (Symbol, error) {
	for _, p := range symbolPatterns {
		m := p.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		code, _ := strconv.Atoi(m[3])
		sym := Symbol{
			Exchange: m[1],
			Product:  m[2],
			Year:     code / 100,
			Month:    code % 100,
			digits:   len(m[3]),
		}
		if sym.Month < 1 || sym.Month > 12 {
			return Symbol{}, fmt.Errorf("invalid delivery month in symbol %q", s)
		}
		return sym, nil
	}
	return Symbol{}, fmt.Errorf("invalid symbol: %q", s)
}

func (s Symbol) String() string {
	if s.digits == 3 {
		return fmt.Sprintf("%s.%s%d%02d", s.Exchange, s.Product, s.Year, s.Month)
	}
	return fmt.Sprintf("%s.%s%02d%02d", s.Exchange, s.Product, s.Year, s.Month)
}

// Continuous 对应的主连合约
func (s Symbol) Continuous() string {
	return fmt.Sprintf("%s%s.%s", continuousPrefix, s.Exchange, s.Product)
}

// Next 按交割月份列表取下一个合约，跨年时年份进位
// 当前月份不在列表中时取列表里下一个更晚的月份
func Next(symbol string, months []int) (string, error) {
	sym, err := Parse(symbol)
	if err != nil {
		return "", err
	}
	if len(months) == 0 {
		return "", fmt.Errorf("%s: empty delivery month list", symbol)
	}
	yearLimit := 100
	if sym.digits == 3 {
		yearLimit = 10
	}

	next := -1
	for _, m := range months {
		if m > sym.Month && (next < 0 || m < next) {
			next = m
		}
	}
	if next < 0 {
		next = months[0]
		for _, m := range months {
			if m < next {
				next = m
			}
		}
		sym.Year = (sym.Year + 1) % yearLimit
	}
	sym.Month = next
	return sym.String(), nil
}

// ParseContinuous 解析主连合约，返回交易所与品种
func ParseContinuous(s string) (exchange, product string, err error) {
	m := continuousPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", fmt.Errorf("invalid continuous symbol: %q", s)
	}
	return m[1], m[2], nil
}

func ContinuousOf(symbol string) (string, error) {
	sym, err := Parse(symbol)
	if err != nil {
		return "", err
	}
	return sym.Continuous(), nil
}

// CustomID 主连跟踪记录的唯一标识，例如 SHFE_rb_main_long
func CustomID(continuous string, variant model.StrategyVariant, dir model.Direction) (string, error) {
	exchange, product, err := ParseContinuous(continuous)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{exchange, product, string(variant), dir.String()}, "_"), nil
}
