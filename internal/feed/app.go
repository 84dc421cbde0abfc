package feed

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	gzsvc "github.com/zeromicro/go-zero/core/service"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/chain"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/classify"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/dedup"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/emitter"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/holder"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/ingest"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/pushworker"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/statsagg"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/supply"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/taskworker"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
	"github.com/KatriaDopex/jestermaxxing/internal/svc"
)

const (
	defaultHolderRefreshInterval = 60 * time.Second
	defaultWindowResyncInterval  = 5 * time.Minute
	defaultAccumPruneInterval    = 10 * time.Minute
	defaultSupplyRefreshInterval = 10 * time.Minute

	initialLoadTimeout = 30 * time.Second
)

// App 汇聚整条接入与统计链路：双通道接入、去重、分类、
// 持有人榜单、统计聚合以及对外的事件广播。
type App struct {
	svc *svc.ServiceContext
	sg  *gzsvc.ServiceGroup

	emitter  *emitter.Emitter
	seen     *dedup.SeenSignatures
	registry *holder.Registry
	agg      *statsagg.Aggregator
	status   *ingest.StatusManager
	pipeline *ingest.Pipeline

	subscriber    *ingest.Subscriber
	poller        *ingest.Poller
	supplyTracker *supply.Tracker
	pushWorker    *pushworker.KafkaPushWorker // 可选，nil 表示关闭推送

	holderCounter statsagg.HolderCounter
	workers       []*taskworker.IntervalWorker

	ready atomic.Bool
}

// NewApp 构造应用实例
func NewApp(svcCtx *svc.ServiceContext) *App {
	app := &App{
		svc:     svcCtx,
		sg:      gzsvc.NewServiceGroup(),
		emitter: emitter.New(),
		seen:    dedup.NewSeenSignatures(),
	}

	app.registry = holder.NewRegistry(svcCtx.ChainClient)
	app.agg = statsagg.NewAggregator(svcCtx.BaselineStore, app.registry)
	app.status = ingest.NewStatusManager(app.emitter)

	classifier := classify.NewClassifier(app.registry, svcCtx.Cfg.Token.DustThreshold)
	app.pipeline = ingest.NewPipeline(
		svcCtx.ChainClient,
		app.seen,
		classifier,
		app.registry,
		app.agg,
		app.emitter,
	)

	app.subscriber = ingest.NewSubscriber(svcCtx.Cfg.Rpc.WsEndpoint, svcCtx.MintPk, app.pipeline, app.status)
	app.poller = ingest.NewPoller(
		svcCtx.ChainClient,
		app.pipeline,
		app.status,
		time.Duration(svcCtx.Cfg.Ingest.PollIntervalMs)*time.Millisecond,
	)
	app.supplyTracker = supply.NewTracker(svcCtx.Cfg.Rpc.Endpoint, svcCtx.Cfg.Token.Mint, svcCtx.Cfg.Rpc.TimeoutMs)

	app.holderCounter = app.buildHolderCounter()
	app.initWorkers()
	app.initPushWorker()

	app.sg.Add(newRunner("pipeline", app.pipeline.Run))
	app.sg.Add(newRunner("subscriber", app.subscriber.Run))
	app.sg.Add(newRunner("poller", app.poller.Run))
	return app
}

// buildHolderCounter 按配置选择持有人数来源
func (app *App) buildHolderCounter() statsagg.HolderCounter {
	if app.svc.Cfg.Stats.HolderCountSource == "chain" {
		return chainHolderCounter{cli: app.svc.ChainClient}
	}
	return registryHolderCounter{registry: app.registry}
}

// initWorkers 初始化周期任务
func (app *App) initWorkers() {
	cfg := app.svc.Cfg.Stats

	app.addWorker("holder_refresh", intervalOrDefault(cfg.HolderRefreshMs, defaultHolderRefreshInterval),
		func(ctx context.Context) error {
			if err := app.registry.Refresh(ctx); err != nil {
				return err
			}
			app.emitter.EmitHolders(app.registry.Snapshot())
			if err := app.agg.RefreshHolderCount(ctx, app.holderCounter); err != nil {
				return err
			}
			app.emitter.EmitStats(app.agg.Snapshot())
			return nil
		})

	app.addWorker("window_resync", intervalOrDefault(cfg.WindowResyncMs, defaultWindowResyncInterval),
		func(ctx context.Context) error {
			if err := app.agg.RefreshWindowCounts(ctx, app.svc.ChainClient); err != nil {
				return err
			}
			app.emitter.EmitStats(app.agg.Snapshot())
			return nil
		})

	app.addWorker("accum_prune", intervalOrDefault(cfg.AccumulationPruneMs, defaultAccumPruneInterval),
		func(ctx context.Context) error {
			app.agg.PruneStaleAccumulation()
			return nil
		})

	app.addWorker("supply_refresh", intervalOrDefault(cfg.SupplyRefreshMs, defaultSupplyRefreshInterval),
		func(ctx context.Context) error {
			reading, err := app.supplyTracker.Fetch(ctx)
			if err != nil {
				return err
			}
			app.agg.SetSupply(reading.Total, reading.IsBurned)
			app.emitter.EmitStats(app.agg.Snapshot())
			return nil
		})
}

func (app *App) addWorker(name string, interval time.Duration, job taskworker.JobFunc) {
	worker := taskworker.NewIntervalWorker(name, interval, job)
	app.workers = append(app.workers, worker)
	app.sg.Add(worker)
}

// initPushWorker 初始化可选的 Kafka 推送
func (app *App) initPushWorker() {
	if app.svc.Cfg.KafkaProducerConfig == nil {
		logger.Infof("[App] kafka push disabled")
		return
	}

	pushWorker, err := pushworker.NewKafkaPushWorker(app.svc.Cfg.KafkaProducerConfig)
	if err != nil {
		logger.Errorf("[App] failed to create KafkaPushWorker: %v", err)
		panic(err)
	}
	app.pushWorker = pushWorker
	app.sg.Add(pushWorker)

	app.emitter.OnTransaction(pushWorker.AddTransaction)
	app.emitter.OnStatsUpdated(pushWorker.AddStats)
}

//////////////////////////////
// 启动 / 停止
//////////////////////////////

func (app *App) Start() {
	app.bootstrap()

	logger.Infof("[App] starting service group")
	app.sg.Start()
}

func (app *App) Stop() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[App] panic during Stop: %v\n%s", r, debug.Stack())
		}
	}()

	app.ready.Store(false)
	app.sg.Stop()
	app.registry.Release()

	if err := app.svc.BaselineStore.Close(); err != nil {
		logger.Warnf("[App] close baseline store failed: %v", err)
	}
}

// bootstrap 执行一次初始加载：持有人榜单、持有人数、供应量
func (app *App) bootstrap() {
	ctx, cancel := context.WithTimeout(context.Background(), initialLoadTimeout)
	defer cancel()

	holders, err := app.registry.Load(ctx)
	if err != nil {
		logger.Errorf("[App] initial holder load failed: %v", err)
	} else {
		app.emitter.EmitHolders(holders)
	}

	if err := app.agg.RefreshHolderCount(ctx, app.holderCounter); err != nil {
		logger.Warnf("[App] initial holder count refresh failed: %v", err)
	}

	if reading, err := app.supplyTracker.Fetch(ctx); err != nil {
		logger.Warnf("[App] initial supply fetch failed: %v", err)
	} else {
		app.agg.SetSupply(reading.Total, reading.IsBurned)
	}

	app.emitter.EmitStats(app.agg.Snapshot())

	for _, worker := range app.workers {
		worker.Resume()
	}
	if app.pushWorker != nil {
		app.pushWorker.Resume()
	}
	app.ready.Store(true)
}

//////////////////////////////
// 对外只读访问
//////////////////////////////

func (app *App) IsReady() bool {
	return app.ready.Load()
}

func (app *App) Emitter() *emitter.Emitter {
	return app.emitter
}

func (app *App) Status() types.ConnStatus {
	return app.status.Current()
}

func (app *App) Stats() types.StatsSnapshot {
	return app.agg.Snapshot()
}

func (app *App) Holders() []types.HolderRecord {
	return app.registry.Snapshot()
}

//////////////////////////////
// 辅助
//////////////////////////////

type registryHolderCounter struct {
	registry *holder.Registry
}

func (c registryHolderCounter) HolderCount(context.Context) (int, error) {
	return c.registry.Count(), nil
}

type chainHolderCounter struct {
	cli *chain.Client
}

func (c chainHolderCounter) HolderCount(ctx context.Context) (int, error) {
	return c.cli.TokenAccountCount(ctx)
}

func intervalOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// runner 将带 ctx 的阻塞循环适配为 ServiceGroup 的 Start/Stop
type runner struct {
	name   string
	run    func(ctx context.Context)
	ctx    context.Context
	cancel context.CancelFunc
}

func newRunner(name string, run func(ctx context.Context)) *runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &runner{name: name, run: run, ctx: ctx, cancel: cancel}
}

func (r *runner) Start() {
	logger.Infof("[App] %s started", r.name)
	r.run(r.ctx)
}

func (r *runner) Stop() {
	r.cancel()
}
