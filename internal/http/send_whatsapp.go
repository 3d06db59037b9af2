package http

import (
	"net/http"
	"strings"

	"github.com/jmehdipour/clinic-notify/internal/metrics"
	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/jmehdipour/clinic-notify/internal/transport"
	"github.com/jmehdipour/clinic-notify/internal/util"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type sendReq struct {
	TemplateID string          `json:"templateId"`
	Phone      string          `json:"phone"`
	Variables  model.Variables `json:"variables"`
}

// sendWhatsAppHandler sends a template right away, bypassing the job store.
func sendWhatsAppHandler(sender transport.Sender, countryCode string, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sendReq
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid request body")
		}

		phone := util.NormalizePhone(req.Phone, countryCode)
		req.TemplateID = strings.TrimSpace(req.TemplateID)
		if phone == "" || req.TemplateID == "" {
			return fail(c, http.StatusBadRequest, "phone and templateId are required")
		}

		sid, err := sender.Send(c.Request().Context(), transport.Message{
			To:         phone,
			TemplateID: req.TemplateID,
			Variables:  req.Variables,
		})
		if err != nil {
			metrics.DirectSendsTotal.WithLabelValues("failed").Inc()
			log.Warn("direct send failed", zap.String("template_id", req.TemplateID), zap.Error(err))
			return fail(c, http.StatusInternalServerError, err.Error())
		}

		metrics.DirectSendsTotal.WithLabelValues("sent").Inc()
		return c.JSON(http.StatusOK, map[string]any{"success": true, "sid": sid})
	}
}
