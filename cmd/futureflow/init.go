package api

import (
	"context"
	"errors"
	"fmt"
	"futureflow/conf"
	"futureflow/internal/condition"
	"futureflow/internal/contract"
	"futureflow/internal/dao"
	"futureflow/internal/dao/query"
	"futureflow/internal/engine"
	"futureflow/internal/exchange"
	tradehandler "futureflow/internal/handler/trade"
	"futureflow/internal/notify"
	"futureflow/internal/router"
	"futureflow/internal/trade"
	"futureflow/pkg/cache"
	"futureflow/pkg/kafka"
	"futureflow/pkg/logger"
	"futureflow/pkg/mail"
	"futureflow/pkg/recorder"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

var ErrNoGateway = errors.New("no live gateway configured, set trade.simulated")

// App 组装好的交易引擎与路由
type App struct {
	Runner  *engine.Runner
	Router  *router.ApiRouter
	closers []func() error
}

// Close 释放日志文件与 Kafka 连接
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}

// InitApp datasource 与 rdb 可以为空：分别退化为内存仓库和不加租约
func InitApp(ctx context.Context, cfg *conf.Config, datasource *gorm.DB, rdb *redis.Client) (app *App, err error) {
	app = &App{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, app.Close())
			app = nil
		}
	}()

	repo, err := initRepository(datasource)
	if err != nil {
		return app, err
	}

	journal, err := recorder.NewJSONFileRecorder(cfg.Trade.Journal)
	if err != nil {
		return app, err
	}
	app.closers = append(app.closers, journal.Close)

	sinks, digest, err := initSinks(cfg, app)
	if err != nil {
		return app, err
	}
	rec, err := trade.NewRecorder(repo, cfg.Trade.NodeID, journal, sinks, logger.Named("trade"))
	if err != nil {
		return app, err
	}

	gw, err := initGateway(cfg)
	if err != nil {
		return app, err
	}

	eval := condition.NewEvaluator(logger.Named("condition"),
		condition.DefaultRuleSets(condition.Options(cfg.Trade.Recency))...)
	specs, err := engine.SpecsFromConfig(cfg, eval)
	if err != nil {
		return app, err
	}
	deps := engine.Deps{
		Feed:      gw,
		Gateway:   gw,
		Repo:      repo,
		Recorder:  rec,
		Evaluator: eval,
		Log:       logger.Named("engine"),
	}
	traders := make([]*engine.Trader, 0, len(specs))
	for _, spec := range specs {
		t, err := engine.NewTrader(ctx, spec, deps)
		if err != nil {
			return app, fmt.Errorf("init trader %s: %w", spec.Continuous, err)
		}
		traders = append(traders, t)
	}

	var lease cache.Lease
	if rdb != nil {
		lease = cache.NewRedisLease(rdb, leaseOwner(), time.Duration(cfg.Redis.LeaseTTL)*time.Second)
	}
	app.Runner = engine.NewRunner(traders, gw, repo, engine.Options{
		Interval:      cfg.Trade.TickInterval,
		IgnoreSession: cfg.Trade.Simulated,
		Lease:         lease,
		Digest:        digest,
	}, logger.Named("runner"))

	if cfg.Kafka.Broker != "" && cfg.Kafka.CommandTopic != "" {
		consumer := kafka.NewKafkaConsumer(cfg.Kafka.Broker, logger.Named("kafka"))
		if err := app.Runner.ListenCommands(ctx, consumer, cfg.Kafka.CommandTopic, cfg.Kafka.GroupID); err != nil {
			return app, fmt.Errorf("listen commands: %w", err)
		}
	}

	app.Router = router.NewApiRouter(tradehandler.NewTradeHandler(app.Runner))
	return app, nil
}

func initRepository(datasource *gorm.DB) (dao.Repository, error) {
	if datasource == nil {
		logger.Warn("no database configured, trade state is kept in memory")
		return dao.NewMemoryRepository(), nil
	}
	if err := query.Migrate(datasource); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return query.NewRepository(datasource), nil
}

// initSinks 日志总是开启，Kafka 与邮件按配置开启
func initSinks(cfg *conf.Config, app *App) (notify.Multi, engine.TipsDigest, error) {
	sinks := notify.Multi{notify.NewLogSink(logger.Named("notify"))}
	if cfg.Kafka.Broker != "" && cfg.Kafka.Topic != "" {
		producer := kafka.NewKafkaProducer(cfg.Kafka.Broker, cfg.Kafka.Topic)
		app.closers = append(app.closers, producer.Close)
		sinks = append(sinks, notify.NewKafkaSink(producer))
	}
	if cfg.Email.Host == "" || len(cfg.Email.Recipients) == 0 {
		return sinks, nil, nil
	}
	sender, err := mail.NewSender(cfg.Email, mail.NewVerifier(cfg.Email.PreCheck))
	if err != nil {
		return nil, nil, fmt.Errorf("init mail: %w", err)
	}
	ms := notify.NewMailSink(sender)
	return append(sinks, ms), ms, nil
}

// initGateway 模拟盘从 data-dir 加载当前与下一合约的K线
func initGateway(cfg *conf.Config) (exchange.Gateway, error) {
	if !cfg.Trade.Simulated {
		return nil, ErrNoGateway
	}
	ex := exchange.NewSimulatedExchange(cfg.Trade.Balance)
	for _, f := range cfg.Futures {
		if !f.Active {
			continue
		}
		if f.Underlying == "" {
			return nil, fmt.Errorf("%s: simulated trading needs underlying", f.Symbol)
		}
		next, err := contract.Next(f.Underlying, f.MainMonths)
		if err != nil {
			return nil, err
		}
		if _, err := ex.LoadCSVDir(cfg.Trade.DataDir, f.Underlying, f.ExpireRestDays); err != nil {
			return nil, err
		}
		if _, err := ex.LoadCSVDir(cfg.Trade.DataDir, next, f.ExpireRestDays+90); err != nil {
			logger.Warnf("simulated data for %s not loaded: %v", next, err)
		}
		q, err := ex.GetQuote(context.Background(), f.Underlying)
		if err != nil {
			return nil, err
		}
		q.Symbol = f.Symbol
		q.Underlying = f.Underlying
		ex.SetQuote(q)
	}
	return ex, nil
}

func leaseOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
