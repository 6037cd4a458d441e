package query

import (
	"context"
	"errors"
	"fmt"
	"futureflow/internal/dao"
	"futureflow/internal/model"
	"futureflow/internal/model/entity"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) dao.Repository {
	return &repository{db: db}
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.TradeStatus{},
		&entity.Tracking{},
		&entity.TradeRecord{},
		&entity.BottomTip{},
	)
}

func (r *repository) LoadPositionState(ctx context.Context, key model.PositionKey) (*model.PositionState, error) {
	return loadPosition(r.db.WithContext(ctx), key)
}

func loadPosition(db *gorm.DB, key model.PositionKey) (*model.PositionState, error) {
	var row entity.TradeStatus
	err := db.Where("variant = ? AND symbol = ? AND direction = ?", string(key.Variant), key.Symbol, int(key.Direction)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dao.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load trade status %s: %w", key, err)
	}
	return fromTradeStatus(&row)
}

func (r *repository) SavePositionState(ctx context.Context, state *model.PositionState) error {
	if state == nil || state.Symbol == "" {
		return dao.ErrInvalidInput
	}
	return savePosition(r.db.WithContext(ctx), state)
}

// savePosition 按 策略+合约+方向 upsert
func savePosition(db *gorm.DB, state *model.PositionState) error {
	row, err := toTradeStatus(state)
	if err != nil {
		return fmt.Errorf("encode trade status %s: %w", state.Key(), err)
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "variant"}, {Name: "symbol"}, {Name: "direction"}},
		DoUpdates: clause.AssignmentColumns(tradeStatusColumns),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("save trade status %s: %w", state.Key(), err)
	}
	return nil
}

var tradeStatusColumns = []string{
	"trade_status", "carrying_volume", "open_price", "start_time", "end_time", "open_conditions",
	"stop_loss_price", "sl_reason", "tp_started_point", "stage", "policy", "has_enter_tp",
	"has_increase_slp", "updated_at",
}

func (r *repository) LoadTrackingState(ctx context.Context, continuousID string) (*model.TrackingState, error) {
	db := r.db.WithContext(ctx)
	var row entity.Tracking
	err := db.Where("custom_id = ?", continuousID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dao.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load tracking %s: %w", continuousID, err)
	}
	return r.fillTracking(db, &row)
}

func (r *repository) fillTracking(db *gorm.DB, row *entity.Tracking) (*model.TrackingState, error) {
	t := &model.TrackingState{
		ContinuousID:     row.CustomID,
		ContinuousSymbol: row.ContinuousSymbol,
		Variant:          model.StrategyVariant(row.Variant),
		Direction:        model.Direction(row.Direction),
		LastModified:     row.UpdatedAt,
	}
	var err error
	if t.Current, err = positionOrIdle(db, t.Variant, row.CurrentSymbol, t.Direction); err != nil {
		return nil, err
	}
	if t.Next, err = positionOrIdle(db, t.Variant, row.NextSymbol, t.Direction); err != nil {
		return nil, err
	}
	return t, nil
}

func positionOrIdle(db *gorm.DB, variant model.StrategyVariant, symbol string, dir model.Direction) (*model.PositionState, error) {
	s, err := loadPosition(db, model.PositionKey{Variant: variant, Symbol: symbol, Direction: dir})
	if errors.Is(err, dao.ErrNotFound) {
		return model.NewPositionState(variant, symbol, dir), nil
	}
	return s, err
}

func (r *repository) SaveTrackingState(ctx context.Context, state *model.TrackingState) error {
	if !validTracking(state) {
		return dao.ErrInvalidInput
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveTracking(tx, state)
	})
}

func saveTracking(tx *gorm.DB, state *model.TrackingState) error {
	if err := savePosition(tx, state.Current); err != nil {
		return err
	}
	if err := savePosition(tx, state.Next); err != nil {
		return err
	}
	row := entity.Tracking{
		CustomID:         state.ContinuousID,
		ContinuousSymbol: state.ContinuousSymbol,
		Variant:          string(state.Variant),
		Direction:        int(state.Direction),
		CurrentSymbol:    state.Current.Symbol,
		NextSymbol:       state.Next.Symbol,
		UpdatedAt:        state.LastModified,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "custom_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"current_symbol", "next_symbol", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save tracking %s: %w", state.ContinuousID, err)
	}
	return nil
}

func (r *repository) ListTrackingStates(ctx context.Context) ([]*model.TrackingState, error) {
	db := r.db.WithContext(ctx)
	var rows []entity.Tracking
	if err := db.Order("custom_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tracking: %w", err)
	}
	out := make([]*model.TrackingState, 0, len(rows))
	for i := range rows {
		t, err := r.fillTracking(db, &rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *repository) AppendTradeRecord(ctx context.Context, rec *model.TradeRecord) error {
	if rec == nil || rec.ContinuousID == "" {
		return dao.ErrInvalidInput
	}
	return appendRecord(r.db.WithContext(ctx), rec)
}

func appendRecord(db *gorm.DB, rec *model.TradeRecord) error {
	err := db.Create(toTradeRecord(rec)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return dao.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("append trade record %d: %w", rec.ID, err)
	}
	return nil
}

func (r *repository) ListTradeRecords(ctx context.Context, continuousID string, limit int) ([]model.TradeRecord, error) {
	q := r.db.WithContext(ctx).Where("custom_id = ?", continuousID).Order("trade_time DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []entity.TradeRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list trade records %s: %w", continuousID, err)
	}
	out := make([]model.TradeRecord, len(rows))
	for i := range rows {
		out[len(rows)-1-i] = fromTradeRecord(&rows[i])
	}
	return out, nil
}

func (r *repository) LastTradeRecord(ctx context.Context, continuousID string) (*model.TradeRecord, error) {
	recs, err := r.ListTradeRecords(ctx, continuousID, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, dao.ErrNotFound
	}
	return &recs[0], nil
}

func (r *repository) SaveTip(ctx context.Context, tip *model.EntryTip) error {
	if tip == nil || tip.ID == 0 {
		return dao.ErrInvalidInput
	}
	row, err := toBottomTip(tip)
	if err != nil {
		return fmt.Errorf("encode tip %d: %w", tip.ID, err)
	}
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("save tip %d: %w", tip.ID, err)
	}
	return nil
}

func (r *repository) FindTip(ctx context.Context, continuousID string, dailyTime time.Time) (*model.EntryTip, error) {
	return r.firstTip(r.db.WithContext(ctx).Where("custom_id = ? AND dkline_time = ?", continuousID, dailyTime))
}

func (r *repository) GetTip(ctx context.Context, id int64) (*model.EntryTip, error) {
	return r.firstTip(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) firstTip(q *gorm.DB) (*model.EntryTip, error) {
	var row entity.BottomTip
	err := q.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dao.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tip: %w", err)
	}
	tip, err := fromBottomTip(&row)
	if err != nil {
		return nil, err
	}
	return &tip, nil
}

func (r *repository) SetNeedTrade(ctx context.Context, id int64, needTrade bool) error {
	res := r.db.WithContext(ctx).Model(&entity.BottomTip{}).Where("id = ?", id).Update("need_trade", needTrade)
	if res.Error != nil {
		return fmt.Errorf("update tip %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return dao.ErrNotFound
	}
	return nil
}

func (r *repository) ListTips(ctx context.Context, since time.Time) ([]model.EntryTip, error) {
	var rows []entity.BottomTip
	err := r.db.WithContext(ctx).Where("created_at >= ?", since).Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list tips: %w", err)
	}
	out := make([]model.EntryTip, 0, len(rows))
	for i := range rows {
		tip, err := fromBottomTip(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, tip)
	}
	return out, nil
}

// CommitRollover 换月流水与跟踪状态在同一个事务中提交
func (r *repository) CommitRollover(ctx context.Context, rec *model.TradeRecord, tracking *model.TrackingState) error {
	if !validTracking(tracking) {
		return dao.ErrInvalidInput
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rec != nil {
			if err := appendRecord(tx, rec); err != nil {
				return err
			}
		}
		return saveTracking(tx, tracking)
	})
}

func validTracking(state *model.TrackingState) bool {
	return state != nil && state.ContinuousID != "" && state.Current != nil && state.Next != nil
}
