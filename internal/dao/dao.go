package dao

import (
	"context"
	"errors"
	"futureflow/internal/model"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidInput = errors.New("invalid input")
)

// PositionDao 合约交易状态
type PositionDao interface {
	// 不存在时返回 ErrNotFound
	LoadPositionState(ctx context.Context, key model.PositionKey) (*model.PositionState, error)
	SavePositionState(ctx context.Context, state *model.PositionState) error
}

// TrackingDao 主连合约跟踪状态，保存时连同当前/下一合约的交易状态一起写入
type TrackingDao interface {
	LoadTrackingState(ctx context.Context, continuousID string) (*model.TrackingState, error)
	SaveTrackingState(ctx context.Context, state *model.TrackingState) error
	ListTrackingStates(ctx context.Context) ([]*model.TrackingState, error)
}

// TradeRecordDao 开平仓流水，只追加
type TradeRecordDao interface {
	AppendTradeRecord(ctx context.Context, rec *model.TradeRecord) error
	// 按成交时间正序返回最近 limit 条，limit<=0 返回全部
	ListTradeRecords(ctx context.Context, continuousID string, limit int) ([]model.TradeRecord, error)
	LastTradeRecord(ctx context.Context, continuousID string) (*model.TradeRecord, error)
}

// TipDao 摸底策略开仓提示
type TipDao interface {
	SaveTip(ctx context.Context, tip *model.EntryTip) error
	FindTip(ctx context.Context, continuousID string, dailyTime time.Time) (*model.EntryTip, error)
	GetTip(ctx context.Context, id int64) (*model.EntryTip, error)
	SetNeedTrade(ctx context.Context, id int64, needTrade bool) error
	ListTips(ctx context.Context, since time.Time) ([]model.EntryTip, error)
}

// Repository 交易引擎使用的全部持久化操作
type Repository interface {
	PositionDao
	TrackingDao
	TradeRecordDao
	TipDao

	// CommitRollover 在同一事务内写入换月平仓流水(可为空)和换月后的跟踪状态
	CommitRollover(ctx context.Context, rec *model.TradeRecord, tracking *model.TrackingState) error
}
