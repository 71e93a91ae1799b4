package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"GridCast/internal/domain/models"
	"GridCast/internal/usecase"
	xhttp "GridCast/pkg/http"
	xlogger "GridCast/pkg/logger"
)

// ForecastsHandler exposes the read API over stored runs.
type ForecastsHandler struct {
	logger *xlogger.Logger
	reader *usecase.Reader
	levels []float64
}

func NewForecastsHandler(logger *xlogger.Logger, reader *usecase.Reader, levels []float64) *ForecastsHandler {
	return &ForecastsHandler{logger: logger, reader: reader, levels: levels}
}

func (h *ForecastsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/forecasts")
	g.GET("/latest", h.Latest)
	g.GET("/historical", h.Historical)
	g.GET("/status", h.Status)
	g.GET("/runs", h.Runs)
	e.GET("/healthz", h.Healthz)
}

type latestRequest struct {
	Product string `query:"product" validate:"omitempty,oneof=DALMP RTLMP RegUp RegDown RRS NSRS"`
	Format  string `query:"format" default:"json" validate:"oneof=json csv"`
}

type historicalRequest struct {
	Date    string `query:"date" validate:"required,datetime=2006-01-02"`
	Product string `query:"product" validate:"omitempty,oneof=DALMP RTLMP RegUp RegDown RRS NSRS"`
	Format  string `query:"format" default:"json" validate:"oneof=json csv"`
}

type runsRequest struct {
	Limit int `query:"limit" default:"30" validate:"gte=1,lte=365"`
}

func (h *ForecastsHandler) Latest(c echo.Context) error {
	req := &latestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	view, err := h.reader.Latest(c.Request().Context(), req.Product)
	if err != nil {
		return h.runError(c, err, "latest")
	}
	return h.writeRun(c, view, req.Format)
}

func (h *ForecastsHandler) Historical(c echo.Context) error {
	req := &historicalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, ok := xhttp.ParseRunDate(req.Date)
	if !ok {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestErrorf("invalid date %q", req.Date))
	}

	view, err := h.reader.ByDate(c.Request().Context(), date, req.Product)
	if err != nil {
		return h.runError(c, err, "historical")
	}
	return h.writeRun(c, view, req.Format)
}

func (h *ForecastsHandler) Status(c echo.Context) error {
	status, err := h.reader.Status(c.Request().Context())
	if err != nil {
		h.logger.Error("status read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("status unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *ForecastsHandler) Runs(c echo.Context) error {
	req := &runsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	runs, err := h.reader.Runs(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("runs read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("runs unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, runs, int64(len(runs)))
}

func (h *ForecastsHandler) Healthz(c echo.Context) error {
	if err := h.reader.Health(c.Request().Context()); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("storage unreachable").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *ForecastsHandler) runError(c echo.Context, err error, op string) error {
	if errors.Is(err, models.ErrRunNotFound) {
		return xhttp.NotFoundResponse(c, xhttp.NotFoundError("no forecast run available"))
	}
	h.logger.Error("forecast read error",
		xlogger.String("op", op),
		xlogger.Error(err),
	)
	return xhttp.AppErrorResponse(c, xhttp.InternalError("forecast read failed").WithError(err))
}

func (h *ForecastsHandler) writeRun(c echo.Context, view *usecase.RunView, format string) error {
	if format == "csv" {
		return h.writeCSV(c, view)
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *ForecastsHandler) writeCSV(c echo.Context, view *usecase.RunView) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="forecasts_%s.csv"`, view.RunDate))
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	header := []string{"timestamp", "product", "hour", "point_forecast"}
	labels := make([]string, 0, len(h.levels))
	for _, lv := range h.levels {
		labels = append(labels, usecase.QuantileLabel(lv))
	}
	header = append(header, labels...)
	header = append(header, "generation_timestamp", "is_fallback")
	if err := w.Write(header); err != nil {
		return err
	}

	for _, row := range view.Rows {
		rec := []string{
			row.Timestamp.UTC().Format(time.RFC3339),
			row.Product,
			strconv.Itoa(row.Hour),
			strconv.FormatFloat(row.PointForecast, 'f', -1, 64),
		}
		for _, label := range labels {
			rec = append(rec, strconv.FormatFloat(row.Quantiles[label], 'f', -1, 64))
		}
		rec = append(rec,
			row.GenerationTimestamp.UTC().Format(time.RFC3339),
			strconv.FormatBool(row.IsFallback),
		)
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
