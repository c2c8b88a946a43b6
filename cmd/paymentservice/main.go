package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-invoice/config"
	"go-invoice/payment/invoice"
	"go-invoice/payment/ledger"
	"go-invoice/payment/verify"
	"go-invoice/payment/webhook"
	"go-invoice/service"
	"go-invoice/utils"
	"go-invoice/web/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := utils.LoadEnv(); err != nil {
		log.Fatalln("Error loading .env:", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalln(err)
	}
	cfg.SetupLogging()

	store, closeLedger, err := ledger.Open(cfg.LedgerDSN, cfg.LedgerPath)
	if err != nil {
		log.Fatalln(err)
	}
	defer closeLedger()

	opts := []invoice.Option{invoice.WithDefaultPayee(cfg.PayeeAddress)}
	if cfg.WebhookURL != "" {
		opts = append(opts, invoice.WithNotifier(webhook.New(cfg.WebhookURL, cfg.RPCTimeout)))
	}
	svc := invoice.NewService(store, verify.New(cfg.VerifierConfig()), opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	limiter.StartCleanup(10*time.Minute, ctx.Done())

	done, err := service.Start(ctx, "payment", cfg.HTTPHost, cfg.HTTPPort, newRouter(cfg, svc, limiter))
	if err != nil {
		log.Fatalln(err)
	}

	<-done.Done()
}

func newRouter(cfg *config.Config, svc *invoice.Service, limiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if cfg.AllowAllOrigins() {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	corsCfg.ExposeHeaders = []string{"X-Payment-URI"}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("", limiter.Middleware())
	invoice.RegisterHandlers(api, svc, cfg.TokenAddress(), cfg.ChainID, middleware.JwtAuthMiddleware(cfg.JWTSecret))
	return r
}
