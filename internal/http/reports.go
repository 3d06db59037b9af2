package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/clinic-notify/internal/repository"
	"github.com/jmehdipour/clinic-notify/internal/util"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func listEventsHandler(events repository.EventLog, countryCode string, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		f := repository.EventFilter{
			Phone:  util.NormalizePhone(c.QueryParam("phone"), countryCode),
			Status: strings.TrimSpace(c.QueryParam("status")),
			Kind:   strings.TrimSpace(c.QueryParam("kind")),
			Limit:  limit,
			Offset: offset,
		}

		rows, err := events.List(c.Request().Context(), f)
		if err != nil {
			log.Error("clickhouse list failed", zap.Error(err))
			return fail(c, http.StatusInternalServerError, "query failed")
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
