package dao

import (
	"context"
	"futureflow/internal/model"
	"sort"
	"sync"
	"time"
)

type trackingRow struct {
	model.TrackingState
	current, next string
}

// MemoryRepository 内存实现，用于模拟盘和测试
type MemoryRepository struct {
	mu        sync.RWMutex
	positions map[model.PositionKey]*model.PositionState
	tracking  map[string]trackingRow
	records   map[string][]model.TradeRecord
	tips      map[int64]*model.EntryTip
	recordIDs map[int64]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		positions: make(map[model.PositionKey]*model.PositionState),
		tracking:  make(map[string]trackingRow),
		records:   make(map[string][]model.TradeRecord),
		tips:      make(map[int64]*model.EntryTip),
		recordIDs: make(map[int64]struct{}),
	}
}

func (r *MemoryRepository) LoadPositionState(_ context.Context, key model.PositionKey) (*model.PositionState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.positions[key]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) SavePositionState(_ context.Context, state *model.PositionState) error {
	if state == nil || state.Symbol == "" {
		return ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[state.Key()] = state.Clone()
	return nil
}

func (r *MemoryRepository) LoadTrackingState(_ context.Context, continuousID string) (*model.TrackingState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tracking[continuousID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.withPositions(t), nil
}

func (r *MemoryRepository) SaveTrackingState(_ context.Context, state *model.TrackingState) error {
	if err := checkTracking(state); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveTracking(state)
	return nil
}

func (r *MemoryRepository) ListTrackingStates(_ context.Context) ([]*model.TrackingState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.TrackingState, 0, len(r.tracking))
	for _, t := range r.tracking {
		out = append(out, r.withPositions(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContinuousID < out[j].ContinuousID })
	return out, nil
}

func (r *MemoryRepository) AppendTradeRecord(_ context.Context, rec *model.TradeRecord) error {
	if rec == nil || rec.ContinuousID == "" {
		return ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendRecord(rec)
}

func (r *MemoryRepository) ListTradeRecords(_ context.Context, continuousID string, limit int) ([]model.TradeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recs := r.records[continuousID]
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return append([]model.TradeRecord(nil), recs...), nil
}

func (r *MemoryRepository) LastTradeRecord(_ context.Context, continuousID string) (*model.TradeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recs := r.records[continuousID]
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	last := recs[len(recs)-1]
	return &last, nil
}

func (r *MemoryRepository) SaveTip(_ context.Context, tip *model.EntryTip) error {
	if tip == nil || tip.ID == 0 {
		return ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *tip
	c.Conditions = tip.Conditions.Clone()
	r.tips[tip.ID] = &c
	return nil
}

func (r *MemoryRepository) FindTip(_ context.Context, continuousID string, dailyTime time.Time) (*model.EntryTip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tips {
		if t.ContinuousID == continuousID && t.DailyTime.Equal(dailyTime) {
			c := *t
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) GetTip(_ context.Context, id int64) (*model.EntryTip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tips[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *MemoryRepository) SetNeedTrade(_ context.Context, id int64, needTrade bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tips[id]
	if !ok {
		return ErrNotFound
	}
	t.NeedTrade = needTrade
	return nil
}

func (r *MemoryRepository) ListTips(_ context.Context, since time.Time) ([]model.EntryTip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.EntryTip
	for _, t := range r.tips {
		if !t.CreatedAt.Before(since) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) CommitRollover(_ context.Context, rec *model.TradeRecord, tracking *model.TrackingState) error {
	if err := checkTracking(tracking); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec != nil {
		if err := r.appendRecord(rec); err != nil {
			return err
		}
	}
	r.saveTracking(tracking)
	return nil
}

func (r *MemoryRepository) appendRecord(rec *model.TradeRecord) error {
	if _, ok := r.recordIDs[rec.ID]; ok {
		return ErrDuplicateKey
	}
	r.recordIDs[rec.ID] = struct{}{}
	r.records[rec.ContinuousID] = append(r.records[rec.ContinuousID], *rec)
	return nil
}

func (r *MemoryRepository) saveTracking(state *model.TrackingState) {
	c := state.Clone()
	r.positions[c.Current.Key()] = c.Current
	r.positions[c.Next.Key()] = c.Next
	row := trackingRow{TrackingState: *c, current: c.Current.Symbol, next: c.Next.Symbol}
	row.Current, row.Next = nil, nil
	r.tracking[state.ContinuousID] = row
}

func (r *MemoryRepository) withPositions(row trackingRow) *model.TrackingState {
	c := row.TrackingState
	c.Current = r.positionOrIdle(c.Variant, row.current, c.Direction)
	c.Next = r.positionOrIdle(c.Variant, row.next, c.Direction)
	return &c
}

func (r *MemoryRepository) positionOrIdle(variant model.StrategyVariant, symbol string, dir model.Direction) *model.PositionState {
	key := model.PositionKey{Variant: variant, Symbol: symbol, Direction: dir}
	if s, ok := r.positions[key]; ok {
		return s.Clone()
	}
	return model.NewPositionState(variant, symbol, dir)
}

// checkTracking 只校验结构完整，current==next 的状态由 rollover.Reconcile 处理
func checkTracking(state *model.TrackingState) error {
	if state == nil || state.ContinuousID == "" || state.Current == nil || state.Next == nil {
		return ErrInvalidInput
	}
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
