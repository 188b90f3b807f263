// Package httpapi serves audio captchas over HTTP: a client creates a
// challenge, downloads freshly scrambled WAV passes of it and submits an
// answer.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-captcha/internal/captcha"
	"github.com/Raikerian/go-audio-captcha/internal/config"
	"github.com/Raikerian/go-audio-captcha/internal/metrics"
	"github.com/Raikerian/go-audio-captcha/internal/render"
)

// MaxTokenLength bounds the length query parameter.
const MaxTokenLength = captcha.MaxTokenLength

// Error codes returned next to the captcha codes.
const (
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidLength = "INVALID_LENGTH"
	CodeInvalidBody   = "INVALID_BODY"
	CodeInternal      = "INTERNAL"
)

// ServerParams holds dependencies for NewServer.
type ServerParams struct {
	fx.In

	Config  *config.Config
	Factory *render.Factory
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// Server routes captcha requests.
type Server struct {
	cfg      config.HTTPConfig
	factory  *render.Factory
	metrics  *metrics.Collector
	registry *Registry
	logger   *zap.Logger
	engine   *gin.Engine
}

type createResponse struct {
	ID     string `json:"id"`
	Length int    `json:"length"`
}

type verifyRequest struct {
	Answer string `json:"answer"`
}

type verifyResponse struct {
	Verdict string `json:"verdict"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Assets     bool   `json:"assets"`
	Challenges int    `json:"challenges"`
}

// NewServer creates the server and its routes.
func NewServer(p ServerParams) *Server {
	logger := p.Logger.Named("http")

	s := &Server{
		cfg:      p.Config.HTTP,
		factory:  p.Factory,
		metrics:  p.Metrics,
		registry: NewRegistry(p.Config.HTTP.MaxSessions, p.Config.HTTP.SessionTTL.D(), logger),
		logger:   logger,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(logger))

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(p.Metrics.Handler()))

	api := r.Group("/api/captchas")
	api.POST("", s.create)
	api.GET("/:id/audio", s.audio)
	api.POST("/:id/verify", s.verify)
	api.DELETE("/:id", s.remove)

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Registry returns the live challenges.
func (s *Server) Registry() *Registry { return s.registry }

func (s *Server) create(c *gin.Context) {
	length := 0
	if raw := c.Query("length"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > MaxTokenLength {
			abort(c, http.StatusBadRequest, CodeInvalidLength, "length must be between 1 and "+strconv.Itoa(MaxTokenLength))
			return
		}
		length = n
	}

	rig, err := s.factory.New()
	if err != nil {
		s.logger.Error("Failed to build captcha rig", zap.Error(err))
		abort(c, http.StatusInternalServerError, CodeInternal, "cannot create captcha")
		return
	}

	release := s.metrics.Track(rig.Session())
	if err := rig.Session().Generate(length); err != nil {
		release()
		s.fail(c, err)
		return
	}

	id := s.registry.Add(rig, release)
	s.logger.Info("Captcha challenge created",
		zap.String("id", id),
		zap.Int("length", rig.Session().TokenLength()))

	c.JSON(http.StatusCreated, createResponse{ID: id, Length: rig.Session().TokenLength()})
}

func (s *Server) audio(c *gin.Context) {
	rig, ok := s.lookup(c)
	if !ok {
		return
	}

	var buf render.Buffer
	start := time.Now()
	length, err := rig.RenderPass(&buf)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Debug("Captcha audio rendered",
		zap.String("id", c.Param("id")),
		zap.Duration("length", length),
		zap.Duration("elapsed", time.Since(start)))

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "audio/wav", buf.Bytes())
}

func (s *Server) verify(c *gin.Context) {
	rig, ok := s.lookup(c)
	if !ok {
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, CodeInvalidBody, "body must be {\"answer\": \"...\"}")
		return
	}

	verdict, err := rig.Session().Submit(req.Answer)
	if err != nil {
		s.fail(c, err)
		return
	}

	if verdict == captcha.Correct {
		s.registry.Remove(c.Param("id"))
	}

	c.JSON(http.StatusOK, verifyResponse{Verdict: verdict.String()})
}

func (s *Server) remove(c *gin.Context) {
	if !s.registry.Remove(c.Param("id")) {
		abort(c, http.StatusNotFound, CodeNotFound, "unknown or expired captcha")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) health(c *gin.Context) {
	resp := healthResponse{
		Status:     "ok",
		Assets:     s.factory.Bank().AreAllLoaded(),
		Challenges: s.registry.Len(),
	}

	status := http.StatusOK
	if !resp.Assets {
		resp.Status = "assets_missing"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (s *Server) lookup(c *gin.Context) (*render.Rig, bool) {
	rig, ok := s.registry.Get(c.Param("id"))
	if !ok {
		abort(c, http.StatusNotFound, CodeNotFound, "unknown or expired captcha")
		return nil, false
	}
	return rig, true
}

// fail maps session and render errors to responses.
func (s *Server) fail(c *gin.Context, err error) {
	var ce *captcha.Error
	switch {
	case errors.As(err, &ce) && ce.Code == captcha.CodeAssetsMissing:
		abort(c, http.StatusServiceUnavailable, string(ce.Code), ce.Error())
	case errors.As(err, &ce):
		abort(c, http.StatusBadRequest, string(ce.Code), ce.Error())
	default:
		s.logger.Error("Captcha request failed", zap.String("path", c.FullPath()), zap.Error(err))
		abort(c, http.StatusInternalServerError, CodeInternal, "cannot serve captcha")
	}
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Error: msg})
}

// accessLog logs each request once it has been served.
func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
