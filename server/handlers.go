package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	demandforecaster "github.com/aouyang1/go-demand-forecaster"
	"github.com/aouyang1/go-demand-forecaster/forecast"
	"github.com/aouyang1/go-demand-forecaster/registry"
	"github.com/aouyang1/go-demand-forecaster/store"
)

var validate = validator.New()

// EntityRequest selects one medicine and region.
type EntityRequest struct {
	Medicine string `query:"medicine" validate:"required"`
	Region   string `query:"region" validate:"required"`
}

func (r EntityRequest) Key() store.EntityKey {
	return store.EntityKey{Category: r.Medicine, Locality: r.Region}
}

type ForecastRequest struct {
	EntityRequest
	Periods int `query:"periods" default:"12" validate:"gte=1"`
}

// InvalidateRequest drops a single key when both fields are set and every key otherwise.
type InvalidateRequest struct {
	Medicine string `query:"medicine" validate:"required_with=Region"`
	Region   string `query:"region" validate:"required_with=Medicine"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  []ValidationError `json:"fields,omitempty"`
}

type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Entity struct {
	Medicine string `json:"medicine"`
	Region   string `json:"region"`
}

type ModelsResponse struct {
	Cached    []Entity `json:"cached"`
	Hits      uint64   `json:"hits"`
	Misses    uint64   `json:"misses"`
	Fits      uint64   `json:"fits"`
	Failures  uint64   `json:"fitFailures"`
	Evictions uint64   `json:"evictions"`
}

// bindRequest binds query params, applies defaults and validates. It returns the error body
// to send back or nil when the request is usable.
func bindRequest(c echo.Context, req interface{}) *ErrorResponse {
	if err := c.Bind(req); err != nil {
		return &ErrorResponse{Code: "ERR_BAD_REQUEST", Message: err.Error()}
	}
	if err := defaults.Set(req); err != nil {
		return &ErrorResponse{Code: "ERR_BAD_REQUEST", Message: err.Error()}
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return &ErrorResponse{Code: "ERR_BAD_REQUEST", Message: err.Error()}
		}
		fields := make([]ValidationError, 0, len(validationErrors))
		for _, fe := range validationErrors {
			field := strings.ToLower(fe.Field())
			fields = append(fields, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   field,
				Message: fmt.Sprintf("%s failed validation: %s", field, fe.Tag()),
			})
		}
		return &ErrorResponse{Code: "ERR_VALIDATION", Message: "invalid request", Fields: fields}
	}
	return nil
}

// writeError maps engine failures onto status codes.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	code := "ERR_INTERNAL"
	switch {
	case errors.Is(err, demandforecaster.ErrInvalidHorizon):
		status, code = http.StatusBadRequest, "ERR_INVALID_HORIZON"
	case errors.Is(err, registry.ErrInsufficientData):
		status, code = http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_DATA"
	case errors.Is(err, forecast.ErrDivisionDegenerate):
		status, code = http.StatusUnprocessableEntity, "ERR_DIVISION_DEGENERATE"
	case errors.Is(err, registry.ErrUpstreamFitFailure):
		status, code = http.StatusBadGateway, "ERR_UPSTREAM_FIT"
	case errors.Is(err, demandforecaster.ErrUpstreamPredictFailure):
		status, code = http.StatusBadGateway, "ERR_UPSTREAM_PREDICT"
	case errors.Is(err, store.ErrLoadFailure):
		status, code = http.StatusServiceUnavailable, "ERR_LOAD"
	}
	return c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) forecast(c echo.Context) error {
	var req ForecastRequest
	if errResp := bindRequest(c, &req); errResp != nil {
		return c.JSON(http.StatusBadRequest, errResp)
	}
	if s.cfg.MaxHorizon > 0 && req.Periods > s.cfg.MaxHorizon {
		return writeError(c, fmt.Errorf("periods %d exceeds %d, %w", req.Periods, s.cfg.MaxHorizon, demandforecaster.ErrInvalidHorizon))
	}

	res, err := s.f.Forecast(c.Request().Context(), req.Key(), req.Periods)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) historical(c echo.Context) error {
	var req EntityRequest
	if errResp := bindRequest(c, &req); errResp != nil {
		return c.JSON(http.StatusBadRequest, errResp)
	}
	res, err := s.f.HistoricalFit(c.Request().Context(), req.Key())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) seasonal(c echo.Context) error {
	var req EntityRequest
	if errResp := bindRequest(c, &req); errResp != nil {
		return c.JSON(http.StatusBadRequest, errResp)
	}
	return c.JSON(http.StatusOK, s.f.SeasonalPatterns(req.Key()))
}

func (s *Server) performance(c echo.Context) error {
	var req EntityRequest
	if errResp := bindRequest(c, &req); errResp != nil {
		return c.JSON(http.StatusBadRequest, errResp)
	}
	res, err := s.f.Performance(c.Request().Context(), req.Key())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type keyLister interface {
	Keys() []store.EntityKey
}

func (s *Server) entities(c echo.Context) error {
	lister, ok := s.f.Registry().Source().(keyLister)
	if !ok {
		return c.JSON(http.StatusOK, []Entity{})
	}
	return c.JSON(http.StatusOK, toEntities(lister.Keys()))
}

func (s *Server) models(c echo.Context) error {
	reg := s.f.Registry()
	stats := reg.Stats()
	return c.JSON(http.StatusOK, ModelsResponse{
		Cached:    toEntities(reg.Keys()),
		Hits:      stats.Hits,
		Misses:    stats.Misses,
		Fits:      stats.Fits,
		Failures:  stats.FitFailures,
		Evictions: stats.Evictions,
	})
}

func (s *Server) invalidate(c echo.Context) error {
	var req InvalidateRequest
	if errResp := bindRequest(c, &req); errResp != nil {
		return c.JSON(http.StatusBadRequest, errResp)
	}
	reg := s.f.Registry()
	if req.Medicine == "" {
		n := reg.Len()
		reg.InvalidateAll()
		return c.JSON(http.StatusOK, map[string]int{"invalidated": n})
	}
	if !reg.Invalidate(store.EntityKey{Category: req.Medicine, Locality: req.Region}) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Code: "ERR_NOT_FOUND", Message: "no trained model for key"})
	}
	return c.JSON(http.StatusOK, map[string]int{"invalidated": 1})
}

func toEntities(keys []store.EntityKey) []Entity {
	res := make([]Entity, 0, len(keys))
	for _, k := range keys {
		res = append(res, Entity{Medicine: k.Category, Region: k.Locality})
	}
	return res
}
