package router

import (
	"futureflow/internal/handler/ping"
	"futureflow/internal/handler/trade"
	"futureflow/internal/middleware"

	"github.com/gin-gonic/gin"
)

type ApiRouter struct {
	tradeHandler *trade.TradeHandler
}

func NewApiRouter(th *trade.TradeHandler) *ApiRouter {
	return &ApiRouter{tradeHandler: th}
}

// New 创建 gin 引擎并挂载全部路由
func New(api *ApiRouter) *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery(), middleware.RequestId(), middleware.Logger, middleware.NoCache(), middleware.Secure())
	g.GET("/ping", ping.Ping())
	api.Load(g)
	return g
}

func (api *ApiRouter) Load(g *gin.Engine) {
	base := g.Group("/api/v1")

	t := base.Group("/trackers")
	{
		// 主连合约状态
		t.GET("", api.tradeHandler.TrackerGetList())
		t.GET("/:id", api.tradeHandler.TrackerGetDetail())
		t.GET("/:id/records", api.tradeHandler.RecordGetList())
		// 人工平仓
		t.POST("/close", api.tradeHandler.PositionClose())
	}

	tips := base.Group("/tips")
	{
		tips.GET("", api.tradeHandler.TipGetList())
		tips.POST("/approve", api.tradeHandler.TipApprove())
	}
}
