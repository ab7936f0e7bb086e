package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	AllowOrigins []string
	// LocalOnly restricts the API to loopback callers.
	LocalOnly bool
	RateLimit float64
	Burst     int
	Gatherer  prometheus.Gatherer
}

func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	if cfg.LocalOnly {
		r.Use(LocalOnly())
	}
	if cfg.RateLimit > 0 {
		r.Use(NewRateLimiter(cfg.RateLimit, cfg.Burst).Middleware())
	}

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)

		api.GET("/wallet", h.Wallet)
		api.POST("/wallet/connect", h.Connect)
		api.POST("/wallet/disconnect", h.Disconnect)

		api.GET("/chains", h.Chains)
		api.GET("/chains/options", h.ChainOptions)
		api.POST("/chains/switch", h.SwitchChain)

		api.POST("/market/buy", h.Buy)
		api.GET("/market/items/:id/can-buy", h.CanBuy)
		api.GET("/market/tokens/:id/uri", h.TokenURI)
		api.POST("/market/mint", h.Mint)

		api.GET("/tx", h.Transactions)
		api.GET("/tx/:key", h.Transaction)
		api.GET("/notifications", h.Notifications)
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}
