package main

import (
	"context"
	"futureflow/cmd/futureflow"
	"futureflow/conf"
	"futureflow/internal/router"
	"futureflow/pkg/cache"
	"futureflow/pkg/db"
	"futureflow/pkg/logger"
	"log"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 启动交易引擎与管理接口

/*
测试

curl http://localhost:12180/api/v1/trackers

curl -X POST http://localhost:12180/api/v1/tips/approve \
  -H "Content-Type: application/json" \
  -d '{"tip_id":1,"need_trade":true}'

curl -X POST http://localhost:12180/api/v1/trackers/close \
  -H "Content-Type: application/json" \
  -d '{"continuous_id":"SHFE_rb_main_long"}'
*/

func main() {

	// 加载配置文件，数据库与redis参数可由环境变量覆盖
	err := conf.LoadConfig("conf/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appCfg := conf.AppConfig
	logger.InitLogger(&appCfg.Log, appCfg.AppName)
	defer logger.Sync()

	// 初始化数据库，未配置时使用内存仓库
	var datasource *gorm.DB
	if appCfg.Host != "" && appCfg.DbName != "" {
		datasource, err = db.Init(db.NewConfig(appCfg.Username, appCfg.Db.Password, appCfg.Host, appCfg.Port, appCfg.DbName))
		if err != nil {
			logger.Fatalf("init database: %v", err)
		}
	}

	// 初始化redis，用于多进程间的单写者租约
	var rdb *redis.Client
	if appCfg.Redis.Addr != "" {
		if err := cache.InitRedis(appCfg.Redis); err != nil {
			logger.Fatalf("init redis: %v", err)
		}
		rdb = cache.GetRedisClient()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app, err := api.InitApp(ctx, &appCfg, datasource, rdb)
	if err != nil {
		logger.Fatalf("init app: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.Runner.Run(ctx); err != nil {
			logger.Errorf("runner stopped: %v", err)
		}
	}()

	// 创建并启动服务，收到退出信号后等待交易循环释放租约再清理资源
	gin.SetMode(appCfg.Mode)
	srv := api.NewServer(&appCfg)
	srv.Run(router.New(app.Router), cancel)

	wg.Wait()
	if err := app.Close(); err != nil {
		logger.Errorf("close app: %v", err)
	}
	if datasource != nil {
		if m, err := datasource.DB(); err == nil {
			_ = m.Close()
		}
	}
	cache.CloseRedis()
}
