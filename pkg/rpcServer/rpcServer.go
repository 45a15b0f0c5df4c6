// Package rpcServer serves chains, programs, rewards snapshots and poll results as JSON over HTTP.
package rpcServer

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics/metricsTypes"
	"github.com/pearl-agents/staking-sidecar/pkg/rewards"
	"github.com/pearl-agents/staking-sidecar/pkg/rewardsPoller"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.uber.org/zap"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const requestIdHeader = echo.HeaderXRequestID

type AggregatorResolver interface {
	ForProgram(chainId uint64, programId string) (rewards.StakedAgentAggregator, error)
}

// SnapshotStore exposes the poller's latest results. *rewardsPoller.RewardsPoller implements it.
type SnapshotStore interface {
	Latest() []*rewardsPoller.PollResult
}

type RpcServerConfig struct {
	HttpPort       int
	AllowedOrigins []string
}

type RpcServer struct {
	config      *RpcServerConfig
	registry    *chainRegistry.ChainRegistry
	aggregators AggregatorResolver
	snapshots   SnapshotStore
	metricsSink *metrics.MetricsSink
	Logger      *zap.Logger
}

func NewRpcServer(
	cfg *RpcServerConfig,
	registry *chainRegistry.ChainRegistry,
	aggregators AggregatorResolver,
	snapshots SnapshotStore,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *RpcServer {
	return &RpcServer{
		config:      cfg,
		registry:    registry,
		aggregators: aggregators,
		snapshots:   snapshots,
		metricsSink: ms,
		Logger:      l,
	}
}

// Handler returns the routed, CORS-wrapped http.Handler.
func (rpc *RpcServer) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = rpc.httpErrorHandler

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	e.Use(rpc.observe)
	e.Use(middleware.Recover())

	e.GET("/healthz", rpc.handleHealth)

	v1 := e.Group("/v1")
	v1.GET("/chains", rpc.handleListChains)
	v1.GET("/chains/:chainId/programs", rpc.handleListPrograms)
	v1.GET("/chains/:chainId/programs/:programId", rpc.handleGetContractDetails)

	services := v1.Group("/chains/:chainId/programs/:programId/services/:serviceId")
	services.GET("/rewards", rpc.handleGetRewardsSnapshot)
	services.GET("/staking", rpc.handleGetServiceStaking)
	services.GET("/registry", rpc.handleGetServiceRegistry)

	v1.GET("/snapshots", rpc.handleListSnapshots)

	origins := rpc.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIdHeader},
	}).Handler(e)
}

// observe wraps every route in a trace span and records request metrics once the
// response status is known.
func (rpc *RpcServer) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		requestId := c.Response().Header().Get(requestIdHeader)

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}

		span, ctx := ddTracer.StartSpanFromContext(req.Context(), "http.request", ddTracer.ResourceName(route))
		span.SetTag("http.method", req.Method)
		span.SetTag("http.url", req.URL.Path)
		span.SetTag("request_id", requestId)
		defer span.Finish()
		c.SetRequest(req.WithContext(ctx))

		if err := next(c); err != nil {
			span.SetTag("error", true)
			span.SetTag("error.message", err.Error())
			c.Error(err)
		}

		status := c.Response().Status
		span.SetTag("http.status_code", status)

		labels := []metricsTypes.MetricsLabel{
			{Name: "method", Value: req.Method},
			{Name: "pattern", Value: route},
			{Name: "status_code", Value: strconv.Itoa(status)},
		}
		rpc.metricsSink.Incr(metricsTypes.Metric_Incr_HttpRequest, labels, 1)
		rpc.metricsSink.Timing(metricsTypes.Metric_Timing_HttpDuration, time.Since(start), labels)
		return nil
	}
}

// httpErrorHandler maps an error kind onto a status code. Details of internal errors are
// logged, not returned.
func (rpc *RpcServer) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, res := rpc.errorResponse(err)
	res.RequestId = c.Response().Header().Get(requestIdHeader)
	rpc.Logger.Sugar().Debugw("Request failed",
		zap.String("route", c.Path()),
		zap.String("requestId", res.RequestId),
		zap.Int("status", status),
		zap.Error(err),
	)
	if err := c.JSON(status, res); err != nil {
		rpc.Logger.Sugar().Errorw("Failed to write error response", zap.Error(err))
	}
}

func (rpc *RpcServer) errorResponse(err error) (int, *ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		res := &ErrorResponse{Error: strings.ToLower(http.StatusText(he.Code))}
		if msg, ok := he.Message.(string); ok && !strings.EqualFold(msg, res.Error) {
			res.Message = msg
		}
		return he.Code, res
	}

	switch stakingTypes.ClassifyError(err) {
	case stakingTypes.ErrorKind_Unsupported:
		return http.StatusNotFound, &ErrorResponse{Error: "not supported", Message: err.Error()}
	case stakingTypes.ErrorKind_Unavailable:
		return http.StatusServiceUnavailable, &ErrorResponse{Error: "unavailable"}
	case stakingTypes.ErrorKind_Invalid:
		return http.StatusBadRequest, &ErrorResponse{Error: "invalid request", Message: err.Error()}
	default:
		rpc.Logger.Sugar().Errorw("Internal error serving request", zap.Error(err))
		return http.StatusInternalServerError, &ErrorResponse{Error: "internal error"}
	}
}

// Start serves in the background until a value is sent on stop or ctx is done. The returned
// channel receives the error if the server fails to serve, and is closed once it stops.
func (rpc *RpcServer) Start(ctx context.Context, stop <-chan bool) <-chan error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", rpc.config.HttpPort),
		Handler:           rpc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	serving := make(chan struct{})
	go func() {
		defer close(errs)
		defer close(serving)
		rpc.Logger.Sugar().Infow("Starting HTTP server", zap.Int("port", rpc.config.HttpPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- errors.Wrap(err, "http server failed")
		}
	}()

	go func() {
		select {
		case <-stop:
		case <-ctx.Done():
		case <-serving:
			return
		}
		rpc.Logger.Sugar().Infow("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			rpc.Logger.Sugar().Errorw("Failed to shut down HTTP server", zap.Error(err))
		}
	}()
	return errs
}
