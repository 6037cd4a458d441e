package rollover

import (
	"context"
	"errors"
	"fmt"
	"futureflow/internal/contract"
	"futureflow/internal/dao"
	"futureflow/internal/model"
	"time"

	"go.uber.org/zap"
)

// Reconcile 修复当前合约与下一合约相同的跟踪状态
// 以流水中最后一条记录为准：若是该合约的换月平仓则补完换月，否则按主力月份重新计算下一合约
// 状态正常时原样返回，changed 为 false
func Reconcile(ctx context.Context, repo dao.Repository, state *model.TrackingState, months []int,
	log *zap.SugaredLogger) (fixed *model.TrackingState, changed bool, err error) {
	verr := state.Validate()
	if verr == nil {
		return state, false, nil
	}
	if !errors.Is(verr, model.ErrAmbiguousTracking) {
		return nil, false, verr
	}

	symbol := state.Current.Symbol
	currentSymbol := symbol
	last, err := repo.LastTradeRecord(ctx, state.ContinuousID)
	switch {
	case errors.Is(err, dao.ErrNotFound):
	case err != nil:
		return nil, false, fmt.Errorf("load last trade record %s: %w", state.ContinuousID, err)
	case last.Kind == model.EventClose && last.CloseType == model.CloseRollover && last.Symbol == symbol:
		currentSymbol = last.NextSymbol
		if currentSymbol == "" || currentSymbol == symbol {
			if currentSymbol, err = contract.Next(symbol, months); err != nil {
				return nil, false, err
			}
		}
	}
	nextSymbol, err := contract.Next(currentSymbol, months)
	if err != nil {
		return nil, false, err
	}

	out := state.Clone()
	if out.Current, err = loadOrIdle(ctx, repo, state, currentSymbol); err != nil {
		return nil, false, err
	}
	if out.Next, err = loadOrIdle(ctx, repo, state, nextSymbol); err != nil {
		return nil, false, err
	}
	out.LastModified = time.Now()
	if err := out.Validate(); err != nil {
		return nil, false, err
	}
	if err := repo.SaveTrackingState(ctx, out); err != nil {
		return nil, false, model.Fatal(state.ContinuousID, fmt.Errorf("%w: %v", model.ErrPersistence, err))
	}
	log.Warnw("tracking state reconciled",
		"continuous_id", state.ContinuousID,
		"ambiguous", symbol,
		"current", currentSymbol,
		"next", nextSymbol,
	)
	return out, true, nil
}

func loadOrIdle(ctx context.Context, repo dao.Repository, state *model.TrackingState, symbol string) (*model.PositionState, error) {
	key := model.PositionKey{Variant: state.Variant, Symbol: symbol, Direction: state.Direction}
	s, err := repo.LoadPositionState(ctx, key)
	if errors.Is(err, dao.ErrNotFound) {
		return model.NewPositionState(state.Variant, symbol, state.Direction), nil
	}
	return s, err
}
