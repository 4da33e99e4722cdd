// Package httpapi serves the liveness surface: status page, ping, health, build
// info and metrics.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"

	"github.com/nekodylan/OVL-MD/internal/metrics"
)

const (
	defaultPingCPUMax = 90
	pingOnline        = "OVL-MD est en ligne"
)

// CPUSampler returns the current CPU usage in percent.
type CPUSampler func(ctx context.Context) (float64, error)

// Options configures the HTTP server. Zero values disable the matching feature.
type Options struct {
	Addr       string
	RateRPS    float64
	RateBurst  int
	PingCPUMax float64
	Build      BuildInfo
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	CPU        CPUSampler
}

type Server struct {
	opts       Options
	log        *zap.Logger
	engine     *gin.Engine
	httpServer *http.Server
	started    time.Time
	lastPing   atomic.Int64
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PingCPUMax <= 0 {
		opts.PingCPUMax = defaultPingCPUMax
	}
	if opts.CPU == nil {
		opts.CPU = sampleCPU
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	srv := &Server{
		opts:    opts,
		log:     opts.Logger.Named("http"),
		engine:  engine,
		started: time.Now(),
	}
	engine.Use(gin.Recovery(), srv.accessLog(), srv.rateLimit(newIPRateLimiter(opts.RateRPS, opts.RateBurst)))

	engine.GET("/", srv.handleIndex)
	engine.GET("/ping", srv.handlePing)
	engine.GET("/healthz", srv.handleHealthz)
	engine.GET("/info", srv.handleInfo)
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	srv.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

// Routes exposes the router so other packages can mount their endpoints.
func (s *Server) Routes() gin.IRouter { return s.engine }

func (s *Server) Handler() http.Handler { return s.engine }

// LastPing is the time /ping last answered successfully, zero before the first one.
func (s *Server) LastPing() time.Time {
	n := s.lastPing.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
}

func (s *Server) handlePing(c *gin.Context) {
	usage, err := s.opts.CPU(c.Request.Context())
	if err != nil {
		s.log.Warn("cpu sample failed", zap.Error(err))
	}
	if err == nil && usage >= s.opts.PingCPUMax {
		c.String(http.StatusServiceUnavailable, "Surcharge CPU : %.0f%%", usage)
		return
	}
	s.lastPing.Store(time.Now().UnixNano())
	c.String(http.StatusOK, pingOnline)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func sampleCPU(ctx context.Context) (float64, error) {
	values, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, errors.New("no cpu sample")
	}
	return values[0], nil
}

func (s *Server) Start() error {
	s.log.Info("listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

const indexPage = `<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>OVL-MD</title>
</head>
<body style="font-family:sans-serif;display:flex;align-items:center;justify-content:center;height:100vh;margin:0;background:#121212;color:#eee">
<h1>OVL-MD est en ligne</h1>
</body>
</html>
`
