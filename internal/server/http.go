package server

import (
	"context"
	"errors"
	"net"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/domain"
	"github.com/kitbuilder587/search-assistant/internal/metrics"
	"github.com/kitbuilder587/search-assistant/internal/ratelimit"
	"github.com/kitbuilder587/search-assistant/internal/repository"
	"github.com/kitbuilder587/search-assistant/internal/service"
)

const (
	OperationSearch = "/search"

	RequestIDHeader = "X-Request-ID"

	DefaultTimeout = 150 * time.Second

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

var (
	ErrInvalidBody  = errors.New("invalid request body")
	ErrRateLimited  = errors.New("rate limit exceeded, try again later")
	errHistoryOff   = errors.New("history is disabled")
	errHistoryLimit = errors.New("limit must be a positive integer")
)

type Config struct {
	Addr    string
	Timeout time.Duration
}

// Deps: Service обязателен, остальное можно не задавать.
type Deps struct {
	Service service.AnswerService
	Limiter *ratelimit.Limiter
	History repository.HistoryRepository
	Metrics *metrics.Metrics
	// MetricsHandler отдаёт /metrics; nil - эндпоинт не регистрируется.
	MetricsHandler nethttp.Handler
	Logger         *zap.Logger
	KratosLogger   log.Logger
}

type searchBody struct {
	Question string `json:"question"`
	Mode     string `json:"mode"`
}

type Handler struct {
	svc     service.AnswerService
	limiter *ratelimit.Limiter
	history repository.HistoryRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewHTTPServer(c Config, d Deps) *http.Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	// у kratos по умолчанию 1s, для deep этого мало
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	mw := []middleware.Middleware{recovery.Recovery()}
	if d.KratosLogger != nil {
		mw = append(mw, logging.Server(d.KratosLogger))
	}

	opts := []http.ServerOption{
		http.Middleware(mw...),
		http.Filter(requestIDFilter, corsFilter),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	opts = append(opts, http.Timeout(c.Timeout))

	srv := http.NewServer(opts...)

	h := &Handler{
		svc:     d.Service,
		limiter: d.Limiter,
		history: d.History,
		metrics: d.Metrics,
		logger:  d.Logger,
	}

	r := srv.Route("/")
	r.POST("/search", h.Search)
	r.GET("/health", h.Health)
	r.GET("/history", h.History)
	r.GET("/", h.Root)

	if d.MetricsHandler != nil {
		srv.Handle("/metrics", d.MetricsHandler)
	}

	return srv
}

func (h *Handler) Search(ctx http.Context) error {
	key := clientIP(ctx.Request())
	if h.limiter != nil && !h.limiter.Allow(key) {
		if h.metrics != nil {
			h.metrics.RecordRateLimitHit("http")
		}
		h.logger.Warn("rate limit exceeded", zap.String("client", key))
		wait := time.Until(h.limiter.ResetTime(key))
		ctx.Response().Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		return ctx.JSON(nethttp.StatusTooManyRequests, domain.ErrorResponse(domain.ModeQuick, ErrRateLimited))
	}

	var body searchBody
	if err := ctx.Bind(&body); err != nil {
		h.logger.Debug("bad search body", zap.Error(err))
		return ctx.JSON(nethttp.StatusBadRequest, domain.ErrorResponse(domain.ModeQuick, ErrInvalidBody))
	}

	mode, err := domain.ParseMode(body.Mode)
	if err != nil {
		return ctx.JSON(nethttp.StatusBadRequest, domain.ErrorResponse(mode, err))
	}
	req := &domain.AnswerRequest{Question: body.Question, Mode: mode}

	http.SetOperation(ctx, OperationSearch)
	handle := ctx.Middleware(func(c context.Context, in any) (any, error) {
		return h.svc.Process(c, in.(*domain.AnswerRequest))
	})

	out, err := handle(ctx, req)
	if err != nil {
		if isValidationError(err) {
			return ctx.JSON(nethttp.StatusBadRequest, domain.ErrorResponse(mode, err))
		}
		h.logger.Error("search handler failed", zap.Error(err))
		return ctx.JSON(nethttp.StatusInternalServerError, domain.ErrorResponse(mode, domain.ErrInternal))
	}

	resp := out.(*domain.AnswerResponse)
	if resp.Status == domain.StatusError {
		return ctx.JSON(nethttp.StatusInternalServerError, resp)
	}
	return ctx.JSON(nethttp.StatusOK, resp)
}

func (h *Handler) Health(ctx http.Context) error {
	return ctx.JSON(nethttp.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) Root(ctx http.Context) error {
	return ctx.JSON(nethttp.StatusOK, map[string]string{
		"message": "Search Assistant API",
		"status":  "running",
	})
}

// History отдаёт последние запросы, если подключено хранилище.
func (h *Handler) History(ctx http.Context) error {
	if h.history == nil {
		return ctx.JSON(nethttp.StatusNotFound, map[string]string{"error": errHistoryOff.Error()})
	}

	limit := defaultHistoryLimit
	if raw := ctx.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return ctx.JSON(nethttp.StatusBadRequest, map[string]string{"error": errHistoryLimit.Error()})
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.history.ListRecent(ctx, limit)
	if err != nil {
		h.logger.Error("failed to list history", zap.Error(err))
		return ctx.JSON(nethttp.StatusInternalServerError, map[string]string{"error": domain.ErrInternal.Error()})
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}

	return ctx.JSON(nethttp.StatusOK, map[string]any{"items": entries})
}

func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrEmptyQuestion) ||
		errors.Is(err, domain.ErrQuestionTooLong) ||
		errors.Is(err, domain.ErrInvalidMode)
}

// clientIP: первый адрес из X-Forwarded-For, иначе RemoteAddr без порта.
func clientIP(r *nethttp.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestIDFilter(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// corsFilter разрешает любые источники.
func corsFilter(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", "*")
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		if r.Method == nethttp.MethodOptions {
			w.WriteHeader(nethttp.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
