package http

import (
	"net/http"

	"github.com/jmehdipour/clinic-notify/internal/webhook"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// whatsappWebhookHandler always answers 200 with an empty body so the
// provider never retries; problems are only logged.
func whatsappWebhookHandler(r *webhook.Reconciler, verifier *webhook.SignatureVerifier, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if err := req.ParseForm(); err != nil {
			log.Warn("webhook: unreadable form", zap.Error(err))
			return c.NoContent(http.StatusOK)
		}

		if verifier != nil {
			requestURL := c.Scheme() + "://" + req.Host + req.RequestURI
			if !verifier.Valid(req.Header.Get("X-Twilio-Signature"), requestURL, req.PostForm) {
				log.Warn("webhook: signature mismatch", zap.String("remote_ip", c.RealIP()))
				return c.NoContent(http.StatusOK)
			}
		}

		reply := webhook.InboundReply{
			MessageSID:    req.PostForm.Get("MessageSid"),
			From:          req.PostForm.Get("From"),
			Body:          req.PostForm.Get("Body"),
			ButtonPayload: req.PostForm.Get("ButtonPayload"),
			ButtonText:    req.PostForm.Get("ButtonText"),
		}
		outcome, err := r.HandleInboundReply(req.Context(), reply)
		if err != nil {
			log.Error("webhook: reply handling failed",
				zap.String("message_sid", reply.MessageSID), zap.String("outcome", string(outcome)), zap.Error(err))
		} else {
			log.Info("webhook: reply handled",
				zap.String("message_sid", reply.MessageSID), zap.String("outcome", string(outcome)))
		}

		return c.NoContent(http.StatusOK)
	}
}
