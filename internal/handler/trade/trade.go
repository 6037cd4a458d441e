package trade

import (
	"context"
	"errors"
	"futureflow/internal/dao"
	"futureflow/internal/engine"
	"futureflow/internal/model"
	"futureflow/internal/position"
	"futureflow/internal/rollover"
	errs "futureflow/pkg/errors"
	"futureflow/pkg/errors/ecode"
	"futureflow/pkg/response"
	"time"

	"github.com/gin-gonic/gin"
)

// Engine 管理接口需要的交易引擎能力
type Engine interface {
	Statuses() []engine.Status
	Status(id string) (engine.Status, bool)
	Records(ctx context.Context, id string, limit int) ([]model.TradeRecord, error)
	Tips(ctx context.Context, since time.Time) ([]model.EntryTip, error)
	Submit(ctx context.Context, cmd engine.Command) error
}

type RecordsReq struct {
	Limit int `form:"limit" binding:"omitempty,gte=0,lte=1000"`
}

type TipsReq struct {
	Hours int `form:"hours" binding:"omitempty,gt=0,lte=720"` // 最近多少小时，默认24
}

type ApproveReq struct {
	TipID     int64 `json:"tip_id" binding:"required"`
	NeedTrade *bool `json:"need_trade" binding:"required"`
}

type CloseReq struct {
	ContinuousID string `json:"continuous_id" binding:"required"`
	Symbol       string `json:"symbol"` // 为空时平当前合约
}

type TradeHandler struct {
	engine Engine
}

func NewTradeHandler(e Engine) *TradeHandler {
	return &TradeHandler{engine: e}
}

// TrackerGetList 所有主连合约的状态
func (h *TradeHandler) TrackerGetList() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		response.JSON(ctx, nil, h.engine.Statuses())
	}
}

func (h *TradeHandler) TrackerGetDetail() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		s, ok := h.engine.Status(ctx.Param("id"))
		if !ok {
			response.JSON(ctx, errs.WithCode(ecode.NotFoundErr, "continuous id not found"), nil)
			return
		}
		response.JSON(ctx, nil, s)
	}
}

// RecordGetList 某个主连合约最近的开平仓流水
func (h *TradeHandler) RecordGetList() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req RecordsReq
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errs.WithCode(ecode.ValidateErr, err.Error()), nil)
			return
		}
		if req.Limit == 0 {
			req.Limit = 50
		}
		list, err := h.engine.Records(ctx, ctx.Param("id"), req.Limit)
		if err != nil {
			response.JSON(ctx, decode(err), nil)
			return
		}
		response.JSON(ctx, nil, list)
	}
}

func (h *TradeHandler) TipGetList() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req TipsReq
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errs.WithCode(ecode.ValidateErr, err.Error()), nil)
			return
		}
		if req.Hours == 0 {
			req.Hours = 24
		}
		list, err := h.engine.Tips(ctx, time.Now().Add(-time.Duration(req.Hours)*time.Hour))
		if err != nil {
			response.JSON(ctx, decode(err), nil)
			return
		}
		response.JSON(ctx, nil, list)
	}
}

// TipApprove 人工确认摸底策略开仓提示
func (h *TradeHandler) TipApprove() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req ApproveReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.JSON(ctx, errs.WithCode(ecode.ValidateErr, err.Error()), nil)
			return
		}
		cmd := engine.Command{Kind: engine.CmdApprove, TipID: req.TipID, NeedTrade: *req.NeedTrade}
		if err := h.engine.Submit(ctx, cmd); err != nil {
			response.JSON(ctx, decode(err), nil)
			return
		}
		response.JSON(ctx, nil, req)
	}
}

// PositionClose 人工平仓
func (h *TradeHandler) PositionClose() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req CloseReq
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.JSON(ctx, errs.WithCode(ecode.ValidateErr, err.Error()), nil)
			return
		}
		cmd := engine.Command{Kind: engine.CmdClose, ContinuousID: req.ContinuousID, Symbol: req.Symbol}
		if err := h.engine.Submit(ctx, cmd); err != nil {
			response.JSON(ctx, decode(err), nil)
			return
		}
		s, _ := h.engine.Status(req.ContinuousID)
		response.JSON(ctx, nil, s)
	}
}

func decode(err error) error {
	switch {
	case errors.Is(err, engine.ErrUnknownTrader), errors.Is(err, dao.ErrNotFound):
		return errs.Wrap(err, ecode.NotFoundErr, err.Error())
	case errors.Is(err, engine.ErrLeaseNotHeld), errors.Is(err, engine.ErrRunnerStopped):
		return errs.Wrap(err, ecode.Unavailable, err.Error())
	case errors.Is(err, position.ErrOrderPending), errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, rollover.ErrPositionNotOpen):
		return errs.Wrap(err, ecode.ConflictErr, err.Error())
	case errors.Is(err, engine.ErrUnknownCommand):
		return errs.Wrap(err, ecode.ValidateErr, err.Error())
	}
	return errs.Wrap(err, ecode.Unknown, "接口调用失败")
}
