package query

import (
	"futureflow/internal/model"
	"futureflow/internal/model/entity"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func encodeConditions(set model.OpenConditionSet) (datatypes.JSON, error) {
	if len(set) == 0 {
		return datatypes.JSON("[]"), nil
	}
	b, err := json.Marshal(set)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func decodeConditions(raw datatypes.JSON) (model.OpenConditionSet, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var set model.OpenConditionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, nil
	}
	return set, nil
}

func toTradeStatus(s *model.PositionState) (*entity.TradeStatus, error) {
	conds, err := encodeConditions(s.OpenConditions)
	if err != nil {
		return nil, err
	}
	return &entity.TradeStatus{
		Variant:        string(s.Variant),
		Symbol:         s.Symbol,
		Direction:      int(s.Direction),
		TradeStatus:    int(s.Status),
		CarryingVolume: s.CarryingVolume,
		OpenPrice:      s.OpenPrice,
		StartTime:      timePtr(s.OpenTime),
		EndTime:        timePtr(s.CloseTime),
		OpenConditions: conds,
		StopLossPrice:  s.StopLossPrice,
		SLReason:       s.StopLossReason,
		TPStartedPoint: s.TakeProfitAnchor,
		Stage:          s.TakeProfitStage,
		Policy:         s.TakeProfitPolicy,
		HasEnterTP:     s.HasEnteredTakeProfit,
		HasIncreaseSLP: s.HasRaisedStopLoss,
		UpdatedAt:      s.LastModified,
	}, nil
}

func fromTradeStatus(e *entity.TradeStatus) (*model.PositionState, error) {
	conds, err := decodeConditions(e.OpenConditions)
	if err != nil {
		return nil, err
	}
	return &model.PositionState{
		Symbol:               e.Symbol,
		Direction:            model.Direction(e.Direction),
		Variant:              model.StrategyVariant(e.Variant),
		Status:               model.PositionStatus(e.TradeStatus),
		CarryingVolume:       e.CarryingVolume,
		OpenPrice:            e.OpenPrice,
		OpenTime:             timeVal(e.StartTime),
		OpenConditions:       conds,
		StopLossPrice:        e.StopLossPrice,
		StopLossReason:       e.SLReason,
		TakeProfitAnchor:     e.TPStartedPoint,
		TakeProfitStage:      e.Stage,
		TakeProfitPolicy:     e.Policy,
		HasEnteredTakeProfit: e.HasEnterTP,
		HasRaisedStopLoss:    e.HasIncreaseSLP,
		CloseTime:            timeVal(e.EndTime),
		LastModified:         e.UpdatedAt,
	}, nil
}

func toTradeRecord(r *model.TradeRecord) *entity.TradeRecord {
	return &entity.TradeRecord{
		ID:        r.ID,
		CustomID:  r.ContinuousID,
		Symbol:    r.Symbol,
		Variant:   string(r.Variant),
		Direction: int(r.Direction),
		Kind:      string(r.Kind),
		CloseType: int(r.CloseType),
		Reason:    r.Reason,
		Price:     r.Price,
		Volume:    r.Volume,
		OrderID:   r.OrderID,
		Next:      r.NextSymbol,
		TradeTime: r.Time,
	}
}

func fromTradeRecord(e *entity.TradeRecord) model.TradeRecord {
	return model.TradeRecord{
		ID:           e.ID,
		ContinuousID: e.CustomID,
		Symbol:       e.Symbol,
		Direction:    model.Direction(e.Direction),
		Variant:      model.StrategyVariant(e.Variant),
		Kind:         model.TradeEventKind(e.Kind),
		CloseType:    model.CloseType(e.CloseType),
		Reason:       e.Reason,
		Price:        e.Price,
		Volume:       e.Volume,
		OrderID:      e.OrderID,
		NextSymbol:   e.Next,
		Time:         e.TradeTime,
	}
}

func toBottomTip(t *model.EntryTip) (*entity.BottomTip, error) {
	conds, err := encodeConditions(t.Conditions)
	if err != nil {
		return nil, err
	}
	return &entity.BottomTip{
		ID:            t.ID,
		CustomID:      t.ContinuousID,
		Symbol:        t.Symbol,
		Direction:     int(t.Direction),
		DKlineTime:    t.DailyTime,
		LastPrice:     t.LastPrice,
		Volume:        t.Volume,
		OpenCondition: conds,
		NeedTrade:     t.NeedTrade,
		CreatedAt:     t.CreatedAt,
	}, nil
}

func fromBottomTip(e *entity.BottomTip) (model.EntryTip, error) {
	conds, err := decodeConditions(e.OpenCondition)
	if err != nil {
		return model.EntryTip{}, err
	}
	return model.EntryTip{
		ID:           e.ID,
		ContinuousID: e.CustomID,
		Symbol:       e.Symbol,
		Direction:    model.Direction(e.Direction),
		DailyTime:    e.DKlineTime,
		LastPrice:    e.LastPrice,
		Volume:       e.Volume,
		Conditions:   conds,
		NeedTrade:    e.NeedTrade,
		CreatedAt:    e.CreatedAt,
	}, nil
}
