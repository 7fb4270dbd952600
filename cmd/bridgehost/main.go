// bridgehost is a demonstration host for the view bridge. It starts the
// render loop, creates a view whose page script calls back into the host,
// and prints every bridge event until interrupted. An optional debug server
// exposes Prometheus metrics and bridge status.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/embedkit/viewbridge"
	"github.com/embedkit/viewbridge/internal/infrastructure/config"
	"github.com/embedkit/viewbridge/internal/infrastructure/logging"
	"github.com/embedkit/viewbridge/internal/infrastructure/monitoring"
)

const demoPage = `<html>
<head><title>bridgehost demo</title></head>
<body>
  <div id="status">starting</div>
  <script>
    var el = document.getElementById("status");
    el.setTextContent("ready");
    console.log("page up:", document.title);
    __ulb_nc__(__TOKEN__, "hello", JSON.stringify({from: "page"}));
  </script>
</body>
</html>`

func main() {
	configPath := flag.String("config", "", "Optional TOML config file")
	assetRoot := flag.String("assets", "", "Asset root directory (overrides config)")
	metricsAddr := flag.String("metrics", "", "Debug server listen address (overrides config)")
	flag.Parse()

	cfg := loadConfig(*configPath)
	if *assetRoot != "" {
		cfg.Engine.AssetRoot = *assetRoot
	}
	if *metricsAddr != "" {
		cfg.Debug.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	metrics := monitoring.New(registry)

	bridge := viewbridge.New(viewbridge.Options{
		FrameRate: cfg.Engine.FrameRate,
		Logger:    logger,
		Metrics:   metrics,
	})

	bridge.SetEventHandler(func(ev viewbridge.Event) {
		data, err := ev.EncodeData()
		if err != nil {
			logger.Warn("event payload encode failed", zap.Error(err))
			return
		}
		logger.Info("event",
			zap.String("kind", ev.Kind.String()),
			zap.String("view", ev.ViewName),
			zap.String("data", data))
	})

	bridge.Start(cfg.Engine.GPU, cfg.Engine.AssetRoot)
	defer bridge.Stop()

	if cfg.Debug.MetricsAddr != "" {
		go runDebugServer(cfg.Debug.MetricsAddr, bridge, registry, logger)
	}

	bridge.CreateView("demo", 640, 480)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	loaded := false
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			logger.Info("shutting down")
			return
		case <-ticker.C:
			bridge.PollEvents()
			if !loaded {
				if token := bridge.GetViewToken("demo"); token != "" {
					page := demoPageWithToken(token)
					bridge.LoadHTML("demo", page)
					loaded = true
				}
			}
		}
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.LoadOrDefault()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", path, err)
	}
	return cfg
}

func demoPageWithToken(token string) string {
	return strings.Replace(demoPage, "__TOKEN__", `"`+token+`"`, 1)
}

func runDebugServer(addr string, bridge *viewbridge.Bridge, registry *prometheus.Registry, logger *logging.Logger) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"running":     bridge.IsRunning(),
			"initialized": bridge.IsInitialized(),
		})
	})

	logger.Info("debug server listening", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Error("debug server stopped", zap.Error(err))
	}
}
