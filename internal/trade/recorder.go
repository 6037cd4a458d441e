package trade

import (
	"context"
	"errors"
	"fmt"
	"futureflow/internal/dao"
	"futureflow/internal/model"
	"futureflow/internal/notify"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Journal 流水的本地副本
type Journal interface {
	Record(v any) error
}

// Recorder 持久化交易状态与开平仓流水，并发出通知
// 持久化失败返回 FatalError，调用方必须停止处理该主连合约
type Recorder struct {
	repo    dao.Repository
	node    *snowflake.Node
	journal Journal
	sink    notify.Sink
	log     *zap.SugaredLogger
}

func NewRecorder(repo dao.Repository, nodeID int64, journal Journal, sink notify.Sink, log *zap.SugaredLogger) (*Recorder, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	if sink == nil {
		sink = notify.Nop{}
	}
	return &Recorder{repo: repo, node: node, journal: journal, sink: sink, log: log}, nil
}

func (r *Recorder) NewID() int64 {
	return r.node.Generate().Int64()
}

func persistErr(scope string, err error) error {
	return model.Fatal(scope, fmt.Errorf("%w: %v", model.ErrPersistence, err))
}

func (r *Recorder) newRecord(continuousID string, state *model.PositionState, exec model.Execution) *model.TradeRecord {
	return &model.TradeRecord{
		ID:           r.NewID(),
		ContinuousID: continuousID,
		Symbol:       state.Symbol,
		Direction:    state.Direction,
		Variant:      state.Variant,
		Kind:         exec.Kind,
		CloseType:    exec.CloseType,
		Reason:       exec.Reason,
		Price:        exec.Price,
		Volume:       exec.Volume,
		OrderID:      exec.OrderID,
		Time:         exec.Time,
	}
}

// Record 追加一条开平仓流水并保存该合约的最新状态
func (r *Recorder) Record(ctx context.Context, continuousID string, state *model.PositionState, exec model.Execution) (*model.TradeRecord, error) {
	rec := r.newRecord(continuousID, state, exec)
	if err := r.repo.AppendTradeRecord(ctx, rec); err != nil {
		return nil, persistErr(continuousID, err)
	}
	if err := r.repo.SavePositionState(ctx, state); err != nil {
		return nil, persistErr(continuousID, err)
	}
	r.mirror(rec)

	kind := notify.EventOpened
	if exec.Kind == model.EventClose {
		kind = notify.EventClosed
	}
	r.emit(ctx, notify.Event{
		Kind:         kind,
		ContinuousID: continuousID,
		Symbol:       state.Symbol,
		Direction:    state.Direction,
		Price:        exec.Price,
		Volume:       exec.Volume,
		Reason:       reasonOf(exec),
		Time:         exec.Time,
	})
	return rec, nil
}

// SavePosition 保存没有成交的状态变化，例如进入止盈、提高止损
func (r *Recorder) SavePosition(ctx context.Context, continuousID string, state *model.PositionState) error {
	if err := r.repo.SavePositionState(ctx, state); err != nil {
		return persistErr(continuousID, err)
	}
	return nil
}

// SaveTracking 保存主连合约跟踪状态
func (r *Recorder) SaveTracking(ctx context.Context, state *model.TrackingState) error {
	if err := r.repo.SaveTrackingState(ctx, state); err != nil {
		return persistErr(state.ContinuousID, err)
	}
	return nil
}

// RecordRollover 换月平仓流水(持仓时)与换月后的跟踪状态一起提交
// closed 为换月前的当前合约，exec 为空表示空仓换月
func (r *Recorder) RecordRollover(ctx context.Context, tracking *model.TrackingState, closed *model.PositionState, exec *model.Execution) (*model.TradeRecord, error) {
	var rec *model.TradeRecord
	if exec != nil {
		rec = r.newRecord(tracking.ContinuousID, closed, *exec)
		rec.NextSymbol = tracking.Current.Symbol
	}
	if err := r.repo.CommitRollover(ctx, rec, tracking); err != nil {
		return nil, persistErr(tracking.ContinuousID, err)
	}
	// 换月已提交，旧合约的最终状态随后保存
	if closed != nil && closed.Symbol != tracking.Current.Symbol && closed.Symbol != tracking.Next.Symbol {
		if err := r.repo.SavePositionState(ctx, closed); err != nil {
			return rec, persistErr(tracking.ContinuousID, err)
		}
	}
	if rec != nil {
		r.mirror(rec)
	}

	e := notify.Event{
		Kind:         notify.EventRollover,
		ContinuousID: tracking.ContinuousID,
		Symbol:       tracking.Current.Symbol,
		Direction:    tracking.Direction,
		Time:         tracking.LastModified,
	}
	if closed != nil {
		e.Reason = fmt.Sprintf("%s -> %s", closed.Symbol, tracking.Current.Symbol)
	}
	if exec != nil {
		e.Price, e.Volume = exec.Price, exec.Volume
	}
	r.emit(ctx, e)
	return rec, nil
}

// RecordTip 保存开仓提示，同一根日K线只保存一次
func (r *Recorder) RecordTip(ctx context.Context, tip *model.EntryTip) (bool, error) {
	_, err := r.repo.FindTip(ctx, tip.ContinuousID, tip.DailyTime)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, dao.ErrNotFound) {
		return false, persistErr(tip.ContinuousID, err)
	}
	if tip.ID == 0 {
		tip.ID = r.NewID()
	}
	if err := r.repo.SaveTip(ctx, tip); err != nil {
		return false, persistErr(tip.ContinuousID, err)
	}
	r.emit(ctx, notify.Event{
		Kind:         notify.EventTip,
		ContinuousID: tip.ContinuousID,
		Symbol:       tip.Symbol,
		Direction:    tip.Direction,
		Price:        tip.LastPrice,
		Volume:       tip.Volume,
		Reason:       fmt.Sprintf("daily=%d hour3=%d", tip.Conditions.Code(model.Daily), tip.Conditions.Code(model.Hour3)),
		Time:         tip.CreatedAt,
	})
	return true, nil
}

// Fatal 通知运维某个主连合约已停止
func (r *Recorder) Fatal(ctx context.Context, tracking *model.TrackingState, err error) {
	r.emit(ctx, notify.Event{
		Kind:         notify.EventFatal,
		ContinuousID: tracking.ContinuousID,
		Symbol:       tracking.Current.Symbol,
		Direction:    tracking.Direction,
		Reason:       err.Error(),
	})
}

func (r *Recorder) mirror(rec *model.TradeRecord) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(rec); err != nil {
		r.log.Warnw("journal write failed", "id", rec.ID, "error", err)
	}
}

func (r *Recorder) emit(ctx context.Context, e notify.Event) {
	if err := r.sink.Notify(ctx, e); err != nil {
		r.log.Warnw("notify failed", "kind", e.Kind, "continuous_id", e.ContinuousID, "error", err)
	}
}

func reasonOf(exec model.Execution) string {
	if exec.Kind == model.EventOpen {
		return "open"
	}
	return exec.Reason
}
