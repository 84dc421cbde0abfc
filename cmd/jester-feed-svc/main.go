package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"

	"github.com/KatriaDopex/jestermaxxing/internal/config"
	"github.com/KatriaDopex/jestermaxxing/internal/feed"
	"github.com/KatriaDopex/jestermaxxing/internal/handler"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/configloader"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/rest"
	"github.com/KatriaDopex/jestermaxxing/internal/svc"
)

var configFile = flag.String("f", "etc/jester-feed-svc/test.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()
	defer logger.Sync()

	// .env 仅用于本地开发，缺失时忽略
	_ = godotenv.Load()

	flag.Parse()
	logger.Infof("Loading config from %s", *configFile)

	// 加载配置
	var c config.Config
	if err := configloader.LoadConfig(*configFile, &c); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	applyEnvOverrides(&c)
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
	}

	// 初始化 zap 日志
	logger.InitLogger(c.LogConf.ToLogOption())
	logx.SetWriter(logger.ZapWriter{})

	// 初始化依赖注入上下文
	svcCtx := svc.NewServiceContext(&c)

	// 构造 go-zero ServiceGroup 管理服务
	sg := zerosvc.NewServiceGroup()

	app := feed.NewApp(svcCtx)
	sg.Add(app)
	sg.Add(initializeRestServer(&c, app))

	// 启动服务
	logger.Infof("jester-feed starting, mint=%s", c.Token.Mint)
	sg.Start()

	// 等待退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down services...")
	sg.Stop()
}

// applyEnvOverrides 允许通过环境变量覆盖节点地址等敏感配置
func applyEnvOverrides(c *config.Config) {
	if v := os.Getenv("RPC_ENDPOINT"); v != "" {
		c.Rpc.Endpoint = v
	}
	if v := os.Getenv("RPC_WS_ENDPOINT"); v != "" {
		c.Rpc.WsEndpoint = v
	}
	if v := os.Getenv("TOKEN_MINT"); v != "" {
		c.Token.Mint = v
	}
}

func initializeRestServer(c *config.Config, app *feed.App) *rest.SimpleRestServer {
	healthCheck := handler.HealthCheck(app)
	routes := map[string]http.HandlerFunc{
		"/healthz":          healthCheck,
		"/health/readiness": healthCheck,
		"/health/liveness":  healthCheck,
		"/status":           handler.GetStatus(app),
		"/stats":            handler.GetStats(app),
		"/holders":          handler.GetHolders(app),
	}

	return rest.NewSimpleRestServer(c.Server.Port, routes)
}
