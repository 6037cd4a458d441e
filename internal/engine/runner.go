package engine

import (
	"context"
	"errors"
	"fmt"
	"futureflow/internal/contract"
	"futureflow/internal/dao"
	"futureflow/internal/exchange"
	"futureflow/internal/model"
	"futureflow/pkg/cache"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnknownTrader  = errors.New("unknown continuous id")
	ErrLeaseNotHeld   = errors.New("lease not held by this process")
	ErrRunnerStopped  = errors.New("runner stopped")
	ErrUnknownCommand = errors.New("unknown command")
)

const leasePrefix = "futureflow:lease:"

type CommandKind string

const (
	CmdClose   CommandKind = "close"
	CmdApprove CommandKind = "approve"
)

// Command 人工平仓与开仓提示确认，在 Runner 的 goroutine 中执行
type Command struct {
	Kind         CommandKind `json:"kind"`
	ContinuousID string      `json:"continuous_id,omitempty"`
	Symbol       string      `json:"symbol,omitempty"` // 为空时平当前合约
	TipID        int64       `json:"tip_id,omitempty"`
	NeedTrade    bool        `json:"need_trade,omitempty"`
}

type request struct {
	cmd  Command
	done chan error
}

// TipsDigest 盘前开仓提示汇总
type TipsDigest interface {
	SendTipsDigest(tips []model.EntryTip) error
}

type Options struct {
	Interval      time.Duration
	IgnoreSession bool        // 模拟盘不检查交易时段
	Lease         cache.Lease // 为空时不加锁
	Digest        TipsDigest
	Now           func() time.Time
}

// Status 提供给管理接口的只读快照
type Status struct {
	ContinuousID string                `json:"continuous_id"`
	Continuous   string                `json:"continuous_symbol"`
	Variant      model.StrategyVariant `json:"variant"`
	Direction    string                `json:"direction"`
	Current      *model.PositionState  `json:"current"`
	Next         *model.PositionState  `json:"next"`
	Leased       bool                  `json:"leased"`
	Halted       string                `json:"halted,omitempty"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Runner 单个 goroutine 轮询行情，依次驱动所有 Trader
type Runner struct {
	traders []*Trader
	byID    map[string]*Trader
	feed    exchange.MarketDataFeed
	repo    dao.Repository
	opts    Options
	reqs    chan request
	stopped chan struct{}

	leased     map[string]bool
	digestDate time.Time

	mu     sync.RWMutex
	status map[string]Status

	log *zap.SugaredLogger
}

func NewRunner(traders []*Trader, feed exchange.MarketDataFeed, repo dao.Repository, opts Options, log *zap.SugaredLogger) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Runner{
		traders: traders,
		byID:    make(map[string]*Trader, len(traders)),
		feed:    feed,
		repo:    repo,
		opts:    opts,
		reqs:    make(chan request),
		stopped: make(chan struct{}),
		leased:  make(map[string]bool),
		status:  make(map[string]Status),
		log:     log,
	}
	for _, t := range traders {
		r.byID[t.ID()] = t
		r.snapshot(t, opts.Now())
	}
	return r
}

// Run 阻塞直到 ctx 结束，退出时释放租约
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)
	defer r.releaseAll()
	r.log.Infow("runner started", "traders", len(r.traders), "interval", r.opts.Interval)

	for {
		if ctx.Err() != nil {
			return nil
		}
		r.Once(ctx, r.opts.Now())
		if err := r.wait(ctx); err != nil {
			return nil
		}
	}
}

// wait 等待行情更新，期间处理外部指令
func (r *Runner) wait(ctx context.Context) error {
	deadline := time.Now().Add(r.opts.Interval)
	updated := make(chan struct{})
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer close(updated)
		if _, err := r.feed.WaitForUpdate(waitCtx, deadline); err != nil && waitCtx.Err() == nil {
			r.log.Warnw("wait for update failed", "error", err)
			select {
			case <-time.After(time.Until(deadline)):
			case <-waitCtx.Done():
			}
		}
	}()

	for {
		select {
		case req := <-r.reqs:
			req.done <- r.execute(ctx, req.cmd)
		case <-updated:
			return ctx.Err()
		case <-ctx.Done():
			<-updated
			return ctx.Err()
		}
	}
}

// Once 驱动一轮：盘前生成开仓提示，交易时段内驱动交易
func (r *Runner) Once(ctx context.Context, now time.Time) {
	preMarket := contract.InPreMarket(now)
	trading := r.opts.IgnoreSession || contract.InTradingHours(now)
	for _, t := range r.traders {
		if t.Halted() != nil || !r.hold(ctx, t) {
			r.snapshot(t, now)
			continue
		}
		if preMarket {
			if _, err := t.GenerateTip(ctx, now); err != nil {
				r.log.Warnw("generate tip failed", "continuous_id", t.ID(), "error", err)
			}
		}
		if trading {
			if err := t.Cycle(ctx); err != nil {
				r.log.Errorw("trader stopped", "continuous_id", t.ID(), "error", err)
			}
		}
		r.snapshot(t, now)
	}
	if preMarket {
		r.digest(ctx, now)
	}
}

// digest 每个交易日发送一次开仓提示汇总
func (r *Runner) digest(ctx context.Context, now time.Time) {
	date := contract.TradeDate(now)
	if r.opts.Digest == nil || r.digestDate.Equal(date) {
		return
	}
	r.digestDate = date
	tips, err := r.repo.ListTips(ctx, now.Add(-24*time.Hour))
	if err != nil {
		r.log.Warnw("list tips failed", "error", err)
		return
	}
	if len(tips) == 0 {
		return
	}
	if err := r.opts.Digest.SendTipsDigest(tips); err != nil {
		r.log.Warnw("send tips digest failed", "tips", len(tips), "error", err)
	}
}

// hold 获取或续期租约，没有租约的主连合约本轮跳过
func (r *Runner) hold(ctx context.Context, t *Trader) bool {
	if r.opts.Lease == nil {
		return true
	}
	key := leasePrefix + t.ID()
	if r.leased[t.ID()] {
		if err := r.opts.Lease.Renew(ctx, key); err != nil {
			r.log.Warnw("lease lost", "continuous_id", t.ID(), "error", err)
			r.leased[t.ID()] = false
			return false
		}
		return true
	}
	if err := r.opts.Lease.Acquire(ctx, key); err != nil {
		if !errors.Is(err, cache.ErrLeaseHeld) {
			r.log.Warnw("acquire lease failed", "continuous_id", t.ID(), "error", err)
		}
		return false
	}
	if err := t.Reload(ctx); err != nil {
		r.log.Warnw("reload after lease acquired failed", "continuous_id", t.ID(), "error", err)
		_ = t.handle(ctx, err)
		return false
	}
	r.log.Infow("lease acquired", "continuous_id", t.ID(), "current", t.Tracker().Current().Symbol())
	r.leased[t.ID()] = true
	return true
}

func (r *Runner) releaseAll() {
	if r.opts.Lease == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for id, held := range r.leased {
		if !held {
			continue
		}
		if err := r.opts.Lease.Release(ctx, leasePrefix+id); err != nil {
			r.log.Warnw("release lease failed", "continuous_id", id, "error", err)
		}
		r.leased[id] = false
	}
}

// Submit 把指令交给 Runner 执行并等待结果
func (r *Runner) Submit(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, done: make(chan error, 1)}
	select {
	case r.reqs <- req:
	case <-r.stopped:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) execute(ctx context.Context, cmd Command) error {
	r.log.Infow("command received", "kind", cmd.Kind, "continuous_id", cmd.ContinuousID, "symbol", cmd.Symbol, "tip_id", cmd.TipID)
	switch cmd.Kind {
	case CmdClose:
		t, ok := r.byID[cmd.ContinuousID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTrader, cmd.ContinuousID)
		}
		if r.opts.Lease != nil && !r.leased[t.ID()] {
			return fmt.Errorf("%w: %s", ErrLeaseNotHeld, t.ID())
		}
		err := t.ManualClose(ctx, cmd.Symbol)
		r.snapshot(t, r.opts.Now())
		return err
	case CmdApprove:
		tip, err := r.repo.GetTip(ctx, cmd.TipID)
		if err != nil {
			return err
		}
		if _, ok := r.byID[tip.ContinuousID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTrader, tip.ContinuousID)
		}
		return r.repo.SetNeedTrade(ctx, tip.ID, cmd.NeedTrade)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
}

func (r *Runner) snapshot(t *Trader, now time.Time) {
	state := t.Tracker().State()
	s := Status{
		ContinuousID: t.ID(),
		Continuous:   state.ContinuousSymbol,
		Variant:      state.Variant,
		Direction:    state.Direction.String(),
		Current:      state.Current,
		Next:         state.Next,
		Leased:       r.opts.Lease == nil || r.leased[t.ID()],
		UpdatedAt:    now,
	}
	if err := t.Halted(); err != nil {
		s.Halted = err.Error()
	}
	r.mu.Lock()
	r.status[t.ID()] = s
	r.mu.Unlock()
}

// Statuses 所有主连合约的最新快照，按 id 排序
func (r *Runner) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.status))
	for _, s := range r.status {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContinuousID < out[j].ContinuousID })
	return out
}

func (r *Runner) Status(id string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.status[id]
	return s, ok
}

// Tips 最近的开仓提示
func (r *Runner) Tips(ctx context.Context, since time.Time) ([]model.EntryTip, error) {
	return r.repo.ListTips(ctx, since)
}

// Records 某个主连合约最近 limit 条流水
func (r *Runner) Records(ctx context.Context, id string, limit int) ([]model.TradeRecord, error) {
	if _, ok := r.byID[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrader, id)
	}
	return r.repo.ListTradeRecords(ctx, id, limit)
}
