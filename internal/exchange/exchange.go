package exchange

import (
	"context"
	"fmt"
	"futureflow/internal/model"
	"time"

	"go.uber.org/zap"
)

// MarketDataFeed 行情源
type MarketDataFeed interface {
	// 获取最新行情
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	// 获取最近 length 根K线，顺序从旧到新，最后一根为形成中的K线
	GetCandleSeries(ctx context.Context, symbol string, tf model.Timeframe, length int) ([]model.Bar, error)
	// 阻塞直到有新行情或到达 deadline，返回是否有更新
	WaitForUpdate(ctx context.Context, deadline time.Time) (bool, error)
}

// OrderGateway 下单通道
type OrderGateway interface {
	// 下单并等待订单结束（成交或拒绝）；ctx 到期时返回仍处于 ALIVE 的订单
	SubmitOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error)
	// 查询订单状态
	QueryOrder(ctx context.Context, orderID string) (*model.Order, error)
	// 账户资金
	Account(ctx context.Context) (model.Account, error)
}

// Gateway 同时提供行情与下单
type Gateway interface {
	MarketDataFeed
	OrderGateway
}

// PlaceWithFallback 先下市价单，被拒绝时以对手一档价格改下限价单
func PlaceWithFallback(ctx context.Context, gw OrderGateway, req model.OrderRequest, quote model.Quote, log *zap.SugaredLogger) (*model.Order, error) {
	req.LimitPrice = 0
	order, err := gw.SubmitOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit market order %s: %w", req.Symbol, err)
	}
	if order.Status != model.OrderRejected {
		return order, nil
	}

	limit := quote.BidPrice1
	if req.Side == model.Buy {
		limit = quote.AskPrice1
	}
	log.Warnw("market order rejected, retry with limit order",
		"symbol", req.Symbol,
		"side", req.Side,
		"offset", req.Offset,
		"volume", req.Volume,
		"limit_price", limit,
		"message", order.Message,
	)
	if limit <= 0 {
		return order, fmt.Errorf("%w: %s market order rejected and no opposite price", model.ErrOrderRejected, req.Symbol)
	}

	req.LimitPrice = limit
	order, err = gw.SubmitOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit limit order %s: %w", req.Symbol, err)
	}
	if order.Status == model.OrderRejected {
		return order, fmt.Errorf("%w: %s limit %.2f: %s", model.ErrOrderRejected, req.Symbol, limit, order.Message)
	}
	return order, nil
}
