package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/jmehdipour/clinic-notify/internal/reminder"
	"github.com/jmehdipour/clinic-notify/internal/repository"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type scheduleReq struct {
	Phone      string          `json:"phone"`
	TemplateID string          `json:"templateId"`
	Variables  model.Variables `json:"variables"`
	SendAt     string          `json:"sendAt"`
}

func scheduleReminderHandler(svc *reminder.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req scheduleReq
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid request body")
		}

		var sendAt time.Time
		if raw := strings.TrimSpace(req.SendAt); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return fail(c, http.StatusBadRequest, "sendAt must be an RFC 3339 timestamp")
			}
			sendAt = t
		}

		job, err := svc.Schedule(c.Request().Context(), reminder.ScheduleRequest{
			Phone:      req.Phone,
			TemplateID: req.TemplateID,
			Variables:  req.Variables,
			SendAt:     sendAt,
		})
		if err != nil {
			if errors.Is(err, reminder.ErrInvalidRequest) {
				return fail(c, http.StatusBadRequest, err.Error())
			}
			log.Error("schedule reminder failed", zap.Error(err))
			return fail(c, http.StatusInternalServerError, "failed to schedule reminder")
		}

		return c.JSON(http.StatusOK, map[string]any{"success": true, "jobId": job.ID})
	}
}

func listRemindersHandler(svc *reminder.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var st model.JobStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			st = model.JobStatus(raw)
			if !st.Valid() {
				return fail(c, http.StatusBadRequest, "invalid status")
			}
		}

		jobs, err := svc.List(c.Request().Context(), st)
		if err != nil {
			log.Error("list reminders failed", zap.Error(err))
			return fail(c, http.StatusInternalServerError, "query failed")
		}
		if jobs == nil {
			jobs = []model.ReminderJob{}
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "count": len(jobs), "results": jobs})
	}
}

func getReminderHandler(svc *reminder.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := svc.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return jobError(c, log, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "job": job})
	}
}

func cancelReminderHandler(svc *reminder.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := svc.Cancel(c.Request().Context(), c.Param("id"))
		if errors.Is(err, reminder.ErrAlreadyFinal) {
			return c.JSON(http.StatusConflict, map[string]any{"success": false, "error": err.Error(), "job": job})
		}
		if err != nil {
			return jobError(c, log, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "job": job})
	}
}

func jobError(c echo.Context, log *zap.Logger, err error) error {
	if errors.Is(err, repository.ErrJobNotFound) {
		return fail(c, http.StatusNotFound, "reminder not found")
	}
	log.Error("reminder lookup failed", zap.Error(err))
	return fail(c, http.StatusInternalServerError, "query failed")
}
