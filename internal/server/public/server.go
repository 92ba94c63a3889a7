package public

import (
	"context"
	"net/http"
	"strconv"

	"ar-io-observer/chainphase"
	"ar-io-observer/internal/reportcache"
	"ar-io-observer/internal/server/middleware"
	"ar-io-observer/logging"
	"ar-io-observer/nodeconfig"

	"github.com/labstack/echo/v4"
)

const (
	defaultSavesLimit = 20
	maxSavesLimit     = 200
)

type SavesLister interface {
	ListReportSaves(ctx context.Context, limit int) ([]nodeconfig.ReportSaveRecord, error)
}

type Info struct {
	WalletAddress      string `json:"wallet"`
	ContractID         string `json:"contractId"`
	NodeReleaseVersion string `json:"nodeReleaseVersion,omitempty"`
}

type Server struct {
	e       *echo.Echo
	info    Info
	cache   reportcache.Cache
	saves   SavesLister
	tracker *chainphase.ChainPhaseTracker
}

func NewServer(
	info Info,
	cache reportcache.Cache,
	saves SavesLister,
	phaseTracker *chainphase.ChainPhaseTracker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.TransparentErrorHandler

	s := &Server{
		e:       e,
		info:    info,
		cache:   cache,
		saves:   saves,
		tracker: phaseTracker,
	}

	e.Use(middleware.LoggingMiddleware)
	g := e.Group("/ar-io/observer/")

	g.GET("healthcheck", s.getHealthcheck)
	g.GET("info", s.getInfo)
	g.GET("reports/current", s.getCurrentReport)
	g.GET("reports/saves", s.getReportSaves)

	return s
}

func (s *Server) Start(addr string) {
	go func() {
		if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
			logging.Error("HTTP server stopped", logging.Server, "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) getHealthcheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

type InfoResponse struct {
	Info
	CurrentHeight *int64            `json:"currentHeight,omitempty"`
	Epoch         *chainphase.Epoch `json:"epoch,omitempty"`
}

func (s *Server) getInfo(ctx echo.Context) error {
	response := InfoResponse{Info: s.info}
	if s.tracker != nil {
		if state := s.tracker.GetCurrentEpochState(); state != nil {
			height := state.CurrentHeight
			epoch := state.Epoch
			response.CurrentHeight = &height
			response.Epoch = &epoch
		}
	}
	return ctx.JSON(http.StatusOK, response)
}

func (s *Server) getCurrentReport(ctx echo.Context) error {
	r, ok, err := s.cache.Get(ctx.Request().Context(), reportcache.CurrentKey)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return ErrReportNotFound
	}
	return ctx.JSON(http.StatusOK, r)
}

func (s *Server) getReportSaves(ctx echo.Context) error {
	limit := defaultSavesLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return ErrInvalidLimit
		}
		limit = min(parsed, maxSavesLimit)
	}

	records, err := s.saves.ListReportSaves(ctx.Request().Context(), limit)
	if err != nil {
		logging.Error("Failed to list report saves", logging.Server, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return ctx.JSON(http.StatusOK, map[string]any{"saves": records})
}
