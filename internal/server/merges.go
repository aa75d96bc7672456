package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/inquestlab/inquest/internal/investigation"
	"github.com/inquestlab/inquest/internal/store"
)

type mergeRequest struct {
	InvestigationIDs []string `json:"investigation_ids"`
}

type deepDiveRequest struct {
	DocID string `json:"doc_id"`
}

func (s *Server) startMerge(c echo.Context) error {
	var req mergeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.InvestigationIDs) < 2 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least two investigation ids are required")
	}
	invs := make([]investigation.Investigation, 0, len(req.InvestigationIDs))
	for _, id := range req.InvestigationIDs {
		inv, err := s.store.GetInvestigation(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "investigation not found: "+id)
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		invs = append(invs, inv)
	}

	now := time.Now().UTC()
	rec := investigation.MergeRecord{
		ID:               uuid.NewString(),
		InvestigationIDs: req.InvestigationIDs,
		Status:           investigation.MergeStatusRunning,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.SaveMerge(c.Request().Context(), rec); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		analysis, err := s.merger.MergeMany(ctx, invs)
		rec.UpdatedAt = time.Now().UTC()
		if err != nil {
			rec.Status = investigation.MergeStatusFailed
			rec.Error = err.Error()
		} else {
			rec.Status = investigation.MergeStatusDone
			rec.Analysis = analysis
		}
		if saveErr := s.store.SaveMerge(ctx, rec); saveErr != nil {
			s.logger.Printf("merge %s: save failed: %v", rec.ID, saveErr)
		}
	}()
	return c.JSON(http.StatusAccepted, rec)
}

func (s *Server) getMerge(c echo.Context) error {
	rec, err := s.store.GetMerge(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "merge not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

// deepDive runs synchronously: a single document analysis is one LLM
// call, not a pipeline.
func (s *Server) deepDive(c echo.Context) error {
	var req deepDiveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DocID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "doc_id is required")
	}
	ctx := c.Request().Context()
	rec, err := s.store.GetMerge(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "merge not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if rec.Status != investigation.MergeStatusDone {
		return echo.NewHTTPError(http.StatusConflict, "merge is not completed")
	}
	dive, err := s.merger.DeepDive(ctx, req.DocID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	integrated, err := s.merger.Integrate(ctx, rec.Analysis, dive)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	rec.Analysis = integrated
	rec.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveMerge(ctx, rec); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}
