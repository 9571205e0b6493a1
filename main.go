package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/enzococca/SoqotraRockArt/internal/config"
	"github.com/enzococca/SoqotraRockArt/internal/dropbox"
	"github.com/enzococca/SoqotraRockArt/internal/linkcache"
	"github.com/enzococca/SoqotraRockArt/internal/logging"
	"github.com/enzococca/SoqotraRockArt/internal/proxy"
	"github.com/enzococca/SoqotraRockArt/internal/resolver"
	"github.com/enzococca/SoqotraRockArt/internal/server"
	"github.com/enzococca/SoqotraRockArt/internal/server/routes"
	"github.com/enzococca/SoqotraRockArt/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkConfig bool
	checkRemote bool
	sharedLink  string
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkConfig {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["resolve_mode"] = cfg.Dropbox.ResolveMode()
		fields["has_token"] = cfg.Dropbox.HasToken()
		fields["cog_target"] = cfg.Cog.HasTarget()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		fmt.Fprintln(stdOut, "config ok")
		return 0
	}

	links := dropbox.New(server.NewLinkClient(cfg), cfg.Dropbox.APIBase, cfg.Dropbox.AccessToken)

	if opts.checkRemote {
		return runRemoteProbes(cfg, links)
	}
	if opts.sharedLink != "" {
		return runCreateSharedLink(links, opts.sharedLink)
	}

	// 启动顺序为“配置 → 链接缓存 → 解析器/代理 → Fiber server”，
	// 所有请求共享同一份链接缓存，方便观察命中率。
	cache := linkcache.New()
	assetResolver := resolver.New(cfg, cache, links, logger)
	proxyHandler := proxy.NewHandler(server.NewStreamClient(cfg), logger, cfg)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["resolve_mode"] = cfg.Dropbox.ResolveMode()
	fields["cog_target"] = cfg.Cog.HasTarget()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, assetResolver, proxyHandler, cache, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("rockart-assets", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag  string
		checkConfig bool
		checkRemote bool
		sharedLink  string
		showVer     bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ROCKART_CONFIG 覆盖）")
	fs.BoolVar(&checkConfig, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&checkRemote, "check-remote", false, "探测远端存储连通性后退出")
	fs.StringVar(&sharedLink, "create-shared-link", "", "为指定远端路径创建共享链接后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ROCKART_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkConfig: checkConfig,
		checkRemote: checkRemote,
		sharedLink:  sharedLink,
		showVersion: showVer,
	}, nil
}

// runRemoteProbes 依次探测账号、缩略图目录、COG 元数据与临时链接，
// 每个探测输出一行结果，任何一项失败都以退出码 1 结束。
func runRemoteProbes(cfg *config.Config, links *dropbox.Client) int {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	failed := false

	if account, err := links.GetCurrentAccount(ctx); err != nil {
		fmt.Fprintf(stdErr, "account: %v\n", err)
		failed = true
	} else {
		fmt.Fprintf(stdOut, "account: %s <%s>\n", account.Name.DisplayName, account.Email)
	}

	folder := cfg.Dropbox.ThumbnailFolder
	if entries, err := links.ListFolder(ctx, folder); err != nil {
		fmt.Fprintf(stdErr, "folder %s: %v\n", folder, err)
		failed = true
	} else {
		fmt.Fprintf(stdOut, "folder %s: %d entries\n", folder, len(entries))
	}

	if remote := strings.TrimSpace(cfg.Cog.RemotePath); remote != "" {
		if meta, err := links.GetMetadata(ctx, remote); err != nil {
			fmt.Fprintf(stdErr, "metadata %s: %v\n", remote, err)
			failed = true
		} else {
			fmt.Fprintf(stdOut, "metadata %s: %d bytes (%s)\n", remote, meta.Size, meta.ServerModified)
		}

		if link, err := links.GetTemporaryLink(ctx, remote); err != nil {
			fmt.Fprintf(stdErr, "temporary link %s: %v\n", remote, err)
			failed = true
		} else {
			fmt.Fprintf(stdOut, "temporary link %s: %s\n", remote, link)
		}
	}

	if failed {
		return 1
	}
	return 0
}

// runCreateSharedLink 复用或创建共享链接，并打印 dl=1 直链，方便粘贴到 DROPBOX_COG_URL。
func runCreateSharedLink(links *dropbox.Client, remotePath string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	link, err := links.EnsureSharedLink(ctx, remotePath)
	if err != nil {
		fmt.Fprintf(stdErr, "创建共享链接失败: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdOut, "shared link: %s\n", link.URL)
	fmt.Fprintf(stdOut, "direct link: %s\n", dropbox.DirectDownloadURL(link.URL))
	return 0
}

func startHTTPServer(cfg *config.Config, assetResolver *resolver.Resolver, proxyHandler *proxy.Handler, cache *linkcache.Cache, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{
		Logger: logger,
		Config: cfg,
	})
	if err != nil {
		return err
	}

	routes.RegisterAssetRoutes(app, assetResolver)
	routes.RegisterCogRoutes(app, assetResolver, proxyHandler)
	routes.RegisterDiagnosticsRoutes(app, cfg, cache.Stats)
	server.RegisterNotFound(app, logger)

	port := cfg.Global.ListenPort
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf(":%d", port))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.WithFields(logrus.Fields{
			"action": "shutdown",
			"signal": sig.String(),
		}).Info("收到退出信号，开始优雅关闭")
		return app.Shutdown()
	}
}
