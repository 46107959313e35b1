package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/existflow/ironledger/internal/logger"
	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var storageEntities = model.Entities

func newUUID() string { return uuid.NewString() }

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Backend   string `json:"backend"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := healthResponse{
		Status:    "ok",
		Backend:   s.backend.Name(),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	if err := s.backend.HealthCheck(c.Request().Context()); err != nil {
		s.metrics.backendErrors.WithLabelValues("health").Inc()
		logger.Warn("Health check failed", logger.F("error", err.Error()))
		resp.Status = "unavailable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSnapshot(c echo.Context) error {
	snap, err := storage.LoadSnapshot(c.Request().Context(), s.backend)
	if err != nil {
		return s.fail(c, "snapshot", err)
	}
	return c.JSON(http.StatusOK, nonNil(snap))
}

func (s *Server) handleReset(c echo.Context) error {
	if !s.allowReset {
		return c.JSON(http.StatusForbidden, errorResponse{Error: "reset is disabled on this server"})
	}
	if err := s.backend.ResetAll(c.Request().Context()); err != nil {
		return s.fail(c, "reset", err)
	}
	logger.Warn("All data reset", logger.F("remote", c.RealIP()))
	return c.NoContent(http.StatusNoContent)
}

// handleReplace swaps every collection for the snapshot in the body. It is a
// reset as far as permissions go.
func (s *Server) handleReplace(c echo.Context) error {
	if !s.allowReset {
		return c.JSON(http.StatusForbidden, errorResponse{Error: "reset is disabled on this server"})
	}
	var snap model.Snapshot
	if err := c.Bind(&snap); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid snapshot body: " + err.Error()})
	}
	if err := snap.CheckRefs(); err != nil {
		return s.fail(c, "replace", err)
	}
	if err := storage.Replace(c.Request().Context(), nonNil(&snap), s.backend); err != nil {
		return s.fail(c, "replace", err)
	}
	logger.Warn("All data replaced",
		logger.F("records", snap.Len()),
		logger.F("remote", c.RealIP()))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleList(entity model.Entity) echo.HandlerFunc {
	return func(c echo.Context) error {
		snap, err := storage.LoadSnapshot(c.Request().Context(), s.backend)
		if err != nil {
			return s.fail(c, "list", err)
		}
		snap = nonNil(snap)
		switch entity {
		case model.EntityClient:
			return c.JSON(http.StatusOK, snap.Clients)
		case model.EntityProject:
			return c.JSON(http.StatusOK, snap.Projects)
		default:
			return c.JSON(http.StatusOK, snap.Payments)
		}
	}
}

func (s *Server) handleCreate(entity model.Entity) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		rec, err := bindRecord(c, entity)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		if rec.RecordID() == "" {
			rec = withID(rec, s.newID())
		}
		rec = withCreatedAt(rec, s.now())

		snap, err := storage.LoadSnapshot(ctx, s.backend)
		if err != nil {
			return s.fail(c, "create", err)
		}
		if err := checkRecord(snap, rec); err != nil {
			return s.fail(c, "create", err)
		}

		stored, err := s.backend.Create(ctx, rec)
		if err != nil {
			return s.fail(c, "create", err)
		}
		return c.JSON(http.StatusCreated, stored)
	}
}

func (s *Server) handleUpdate(entity model.Entity) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param("id")
		rec, err := bindRecord(c, entity)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		rec = withID(rec, id)

		snap, err := storage.LoadSnapshot(ctx, s.backend)
		if err != nil {
			return s.fail(c, "update", err)
		}
		existing := find(snap, entity, id)
		if existing == nil {
			return s.fail(c, "update", model.ErrNotFound)
		}
		rec = keepCreatedAt(rec, existing)
		if err := checkRecord(snap, rec); err != nil {
			return s.fail(c, "update", err)
		}

		stored, err := s.backend.Update(ctx, rec)
		if err != nil {
			return s.fail(c, "update", err)
		}
		return c.JSON(http.StatusOK, stored)
	}
}

// handleDelete removes a record and everything that references it, leaves first
func (s *Server) handleDelete(entity model.Entity) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param("id")

		snap, err := storage.LoadSnapshot(ctx, s.backend)
		if err != nil {
			return s.fail(c, "delete", err)
		}
		if find(snap, entity, id) == nil {
			return s.fail(c, "delete", model.ErrNotFound)
		}

		for _, dep := range dependents(snap, entity, id) {
			err := s.backend.Delete(ctx, dep.Entity(), dep.RecordID())
			if err != nil && !errors.Is(err, model.ErrNotFound) {
				return s.fail(c, "delete", err)
			}
		}
		if err := s.backend.Delete(ctx, entity, id); err != nil && !errors.Is(err, model.ErrNotFound) {
			return s.fail(c, "delete", err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// nonNil makes empty collections encode as [] rather than null
func nonNil(snap *model.Snapshot) *model.Snapshot {
	if snap.Clients == nil {
		snap.Clients = []model.Client{}
	}
	if snap.Projects == nil {
		snap.Projects = []model.Project{}
	}
	if snap.Payments == nil {
		snap.Payments = []model.Payment{}
	}
	return snap
}

// fail maps err to a status code and writes the error body
func (s *Server) fail(c echo.Context, op string, err error) error {
	var verr *model.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, model.ErrResetRefused):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrMalformedImport):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrBackendUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.metrics.backendErrors.WithLabelValues(op).Inc()
		logger.Error("Backend operation failed",
			logger.F("op", op),
			logger.F("backend", s.backend.Name()),
			logger.F("error", err.Error()))
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}
