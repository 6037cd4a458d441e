package exchange

import (
	"context"
	"fmt"
	"futureflow/internal/model"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SimulatedExchange 模拟行情与撮合，用于本地联调和测试
type SimulatedExchange struct {
	mu      sync.Mutex
	quotes  map[string]model.Quote
	bars    map[string]map[model.Timeframe][]model.Bar
	orders  map[string]*model.Order
	fills   map[string]chan struct{}
	account model.Account
	updates chan struct{}

	rejectMarket bool
	rejectAll    bool
	pending      bool
}

type SimOption func(*SimulatedExchange)

// WithRejectMarket 拒绝所有市价单
func WithRejectMarket() SimOption {
	return func(s *SimulatedExchange) { s.rejectMarket = true }
}

// WithRejectAll 拒绝所有订单
func WithRejectAll() SimOption {
	return func(s *SimulatedExchange) { s.rejectAll = true }
}

// WithPendingOrders 订单保持 ALIVE，直到调用 Fill
func WithPendingOrders() SimOption {
	return func(s *SimulatedExchange) { s.pending = true }
}

func NewSimulatedExchange(balance float64, opts ...SimOption) *SimulatedExchange {
	s := &SimulatedExchange{
		quotes:  make(map[string]model.Quote),
		bars:    make(map[string]map[model.Timeframe][]model.Bar),
		orders:  make(map[string]*model.Order),
		fills:   make(map[string]chan struct{}),
		account: model.Account{Balance: balance, Available: balance},
		updates: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SimulatedExchange) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// SetQuote 设置行情
func (s *SimulatedExchange) SetQuote(q model.Quote) {
	s.mu.Lock()
	s.quotes[q.Symbol] = q
	s.mu.Unlock()
	s.notify()
}

// LoadBars 替换某周期全部K线
func (s *SimulatedExchange) LoadBars(symbol string, tf model.Timeframe, bars []model.Bar) {
	s.mu.Lock()
	if _, ok := s.bars[symbol]; !ok {
		s.bars[symbol] = make(map[model.Timeframe][]model.Bar)
	}
	s.bars[symbol][tf] = append([]model.Bar(nil), bars...)
	s.mu.Unlock()
	s.notify()
}

// PushBar 推送一根K线，时间相同则覆盖最后一根
func (s *SimulatedExchange) PushBar(symbol string, tf model.Timeframe, bar model.Bar) {
	s.mu.Lock()
	if _, ok := s.bars[symbol]; !ok {
		s.bars[symbol] = make(map[model.Timeframe][]model.Bar)
	}
	series := s.bars[symbol][tf]
	if n := len(series); n > 0 && series[n-1].Timestamp.Equal(bar.Timestamp) {
		series[n-1] = bar
	} else {
		series = append(series, bar)
	}
	s.bars[symbol][tf] = series
	q := s.quotes[symbol]
	q.Symbol = symbol
	q.LastPrice = bar.Close
	q.Timestamp = bar.Timestamp
	s.quotes[symbol] = q
	s.mu.Unlock()
	s.notify()
}

func (s *SimulatedExchange) SetAvailable(available float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account.Available = available
}

func (s *SimulatedExchange) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return model.Quote{}, fmt.Errorf("no quote for %s", symbol)
	}
	return q, nil
}

func (s *SimulatedExchange) GetCandleSeries(ctx context.Context, symbol string, tf model.Timeframe, length int) ([]model.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	series := s.bars[symbol][tf]
	if length > 0 && len(series) > length {
		series = series[len(series)-length:]
	}
	return append([]model.Bar(nil), series...), nil
}

func (s *SimulatedExchange) WaitForUpdate(ctx context.Context, deadline time.Time) (bool, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-s.updates:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *SimulatedExchange) SubmitOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error) {
	if req.Volume <= 0 {
		return nil, fmt.Errorf("invalid volume %d", req.Volume)
	}
	s.mu.Lock()
	order := &model.Order{
		OrderID:      uuid.NewString(),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Offset:       req.Offset,
		Status:       model.OrderAlive,
		VolumeOrigin: req.Volume,
		InsertTime:   time.Now(),
	}
	s.orders[order.OrderID] = order

	switch {
	case s.rejectAll, s.rejectMarket && req.Type() == model.Market:
		order.Status = model.OrderRejected
		order.Message = "simulated rejection"
		s.mu.Unlock()
		return s.snapshot(order.OrderID), nil
	case s.pending:
		done := make(chan struct{})
		s.fills[order.OrderID] = done
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return s.snapshot(order.OrderID), nil
	}

	price := req.LimitPrice
	if price <= 0 {
		price = s.quotes[req.Symbol].LastPrice
	}
	order.Status = model.OrderFinished
	order.FilledPrice = price
	order.VolumeFilled = req.Volume
	s.mu.Unlock()
	return s.snapshot(order.OrderID), nil
}

// Fill 让挂起的订单以指定价格成交
func (s *SimulatedExchange) Fill(orderID string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	order.Status = model.OrderFinished
	order.FilledPrice = price
	order.VolumeFilled = order.VolumeOrigin
	if done, ok := s.fills[orderID]; ok {
		close(done)
		delete(s.fills, orderID)
	}
	return nil
}

func (s *SimulatedExchange) QueryOrder(ctx context.Context, orderID string) (*model.Order, error) {
	s.mu.Lock()
	_, ok := s.orders[orderID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("order not found: %s", orderID)
	}
	return s.snapshot(orderID), nil
}

// Orders 所有订单副本，顺序不固定
func (s *SimulatedExchange) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out
}

func (s *SimulatedExchange) Account(ctx context.Context) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, nil
}

func (s *SimulatedExchange) snapshot(orderID string) *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := *s.orders[orderID]
	return &o
}

var _ Gateway = (*SimulatedExchange)(nil)
