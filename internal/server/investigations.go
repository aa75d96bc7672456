package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/inquestlab/inquest/internal/merge"
	"github.com/inquestlab/inquest/internal/network"
	"github.com/inquestlab/inquest/internal/store"
)

type investigationRequest struct {
	Objective string `json:"objective"`
}

// Background jobs outlive the HTTP request; pipelines are bounded
// per-stage, this is an overall safety cap.
const jobTimeout = 30 * time.Minute

func (s *Server) startInvestigation(c echo.Context) error {
	var req investigationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Objective == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "objective is required")
	}
	job := s.jobs.create("investigation")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		res, err := s.runner.Run(ctx, req.Objective)
		if err != nil {
			s.jobs.fail(job.ID, err.Error())
			return
		}
		if err := s.store.SaveInvestigation(ctx, res.Investigation); err != nil {
			s.jobs.fail(job.ID, "save investigation: "+err.Error())
			return
		}
		if !res.Success {
			s.jobs.fail(job.ID, res.Error)
			return
		}
		s.jobs.complete(job.ID, res.Investigation.ID, res.Warnings)
	}()
	return c.JSON(http.StatusAccepted, job)
}

func (s *Server) continueInvestigation(c echo.Context) error {
	id := c.Param("id")
	var req investigationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Objective == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "objective is required")
	}
	base, err := s.store.GetInvestigation(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "investigation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	job := s.jobs.create("continuation")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		prior := merge.ContinuationContext(base)
		res, err := s.runner.RunWithContext(ctx, req.Objective, &prior)
		if err != nil {
			s.jobs.fail(job.ID, err.Error())
			return
		}
		if !res.Success {
			s.jobs.fail(job.ID, res.Error)
			return
		}
		merged, warnings := s.merger.Continue(ctx, base, res.Investigation)
		warnings = append(res.Warnings, warnings...)
		if err := s.store.SaveInvestigation(ctx, merged); err != nil {
			s.jobs.fail(job.ID, "save investigation: "+err.Error())
			return
		}
		s.jobs.complete(job.ID, merged.ID, warnings)
	}()
	return c.JSON(http.StatusAccepted, job)
}

func (s *Server) listInvestigations(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	invs, err := s.store.ListInvestigations(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, invs)
}

func (s *Server) getInvestigation(c echo.Context) error {
	inv, err := s.store.GetInvestigation(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "investigation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, inv)
}

func (s *Server) investigationNetwork(c echo.Context) error {
	inv, err := s.store.GetInvestigation(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "investigation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, network.Project(inv.Analysis, inv.Banking))
}

func (s *Server) verifyCitations(c echo.Context) error {
	if s.checker == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "citation checking not configured")
	}
	inv, err := s.store.GetInvestigation(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "investigation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s.checker.Verify(c.Request().Context(), inv.Report))
}

func (s *Server) listPeople(c echo.Context) error {
	persons, err := s.store.ListPeople(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, persons)
}

func (s *Server) getJob(c echo.Context) error {
	job, ok := s.jobs.get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return c.JSON(http.StatusOK, job)
}
