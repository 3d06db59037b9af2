package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/config"
	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/jmehdipour/clinic-notify/internal/reminder"
	"github.com/jmehdipour/clinic-notify/internal/repository"
	"github.com/jmehdipour/clinic-notify/internal/timer"
	"github.com/jmehdipour/clinic-notify/internal/transport"
	"github.com/jmehdipour/clinic-notify/internal/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu    sync.Mutex
	calls []transport.Message
	err   error
}

func (f *fakeSender) Send(_ context.Context, msg transport.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if f.err != nil {
		return "", f.err
	}
	return "SM123", nil
}

func (f *fakeSender) sent() []transport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Message(nil), f.calls...)
}

type putFailStore struct {
	repository.JobStore
}

func (putFailStore) Put(context.Context, model.ReminderJob) error { return errors.New("db unavailable") }

type fakeEventLog struct {
	got repository.EventFilter
}

func (f *fakeEventLog) InsertBatch(context.Context, []model.Event) error { return nil }

func (f *fakeEventLog) List(_ context.Context, filter repository.EventFilter) ([]model.Event, error) {
	f.got = filter
	return []model.Event{{ID: "E1", Kind: "delivered", Phone: filter.Phone}}, nil
}

type testEnv struct {
	srv    *Server
	jobs   repository.JobStore
	appts  *repository.MemoryAppointmentStore
	sender *fakeSender
	health *Health
	events *fakeEventLog
}

type envOpt func(*config.Config, *testEnv)

func withJobStore(s repository.JobStore) envOpt {
	return func(_ *config.Config, e *testEnv) { e.jobs = s }
}

func withConfig(fn func(*config.Config)) envOpt {
	return func(c *config.Config, _ *testEnv) { fn(c) }
}

func newTestEnv(t *testing.T, opts ...envOpt) *testEnv {
	t.Helper()
	cfg := config.Config{}
	cfg.Transport.CountryCode = "972"
	cfg.HTTP.AllowedOrigins = []string{"http://localhost:3000"}

	env := &testEnv{
		jobs:   repository.NewMemoryJobStore(),
		appts:  repository.NewMemoryAppointmentStore(),
		sender: &fakeSender{},
		health: NewHealth(),
		events: &fakeEventLog{},
	}
	for _, o := range opts {
		o(&cfg, env)
	}

	timers := timer.New()
	t.Cleanup(func() { _ = timers.Stop(context.Background()) })

	deps := reminder.Deps{Store: env.jobs, Sender: env.sender}
	disp := reminder.NewDispatcher(deps, time.Second)
	svc := reminder.NewService(deps, timers, disp, reminder.ServiceOpts{CountryCode: "972", LateFireIfOverdue: true})
	rec := webhook.NewReconciler(webhook.Deps{
		Appointments: env.appts,
		Sender:       env.sender,
		Templates:    webhook.Templates{Ack: "HXACK", Confirmed: "HXCONF", Rescheduled: "HXRES"},
		CountryCode:  "972",
	})

	env.srv = NewServer(Deps{
		Config:     cfg,
		Reminders:  svc,
		Sender:     env.sender,
		Reconciler: rec,
		EventLog:   env.events,
		Health:     env.health,
		Gatherer:   prometheus.NewRegistry(),
	})
	return env
}

func (e *testEnv) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestScheduleReminder(t *testing.T) {
	env := newTestEnv(t)
	sendAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	rec := env.do(http.MethodPost, "/api/schedule-reminder",
		`{"phone":"050-123-4567","templateId":"T1","variables":{"name":"Sara","1":14},"sendAt":"`+sendAt+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	jobID, _ := out["jobId"].(string)
	require.NotEmpty(t, jobID)

	job, err := env.jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobScheduled, job.Status)
	assert.Equal(t, "501234567", job.Recipient)
	assert.Equal(t, model.Variables{"name": "Sara", "1": "14"}, job.Variables)
}

func TestScheduleReminderValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{
		`{"templateId":"T1","sendAt":"2030-01-01T00:00:00Z"}`,
		`{"phone":"0501234567","sendAt":"2030-01-01T00:00:00Z"}`,
		`{"phone":"0501234567","templateId":"T1"}`,
		`{"phone":"0501234567","templateId":"T1","sendAt":"tomorrow"}`,
		`not json`,
	} {
		rec := env.do(http.MethodPost, "/api/schedule-reminder", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, false, decode(t, rec)["success"], body)
	}

	jobs, err := env.jobs.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestScheduleReminderStoreFailure(t *testing.T) {
	env := newTestEnv(t, withJobStore(putFailStore{repository.NewMemoryJobStore()}))

	rec := env.do(http.MethodPost, "/api/schedule-reminder",
		`{"phone":"0501234567","templateId":"T1","sendAt":"2030-01-01T00:00:00Z"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, false, out["success"])
	assert.NotEmpty(t, out["error"])
}

func TestSendWhatsApp(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/send-whatsapp", `{"templateId":"T9","phone":"0501234567","variables":{"1":"x"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "SM123", out["sid"])
	require.Len(t, env.sender.sent(), 1)
	assert.Equal(t, "501234567", env.sender.sent()[0].To)

	rec = env.do(http.MethodPost, "/api/send-whatsapp", `{"phone":"0501234567"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.sender.err = errors.New("provider=twilio status=401")
	rec = env.do(http.MethodPost, "/api/send-whatsapp", `{"templateId":"T9","phone":"0501234567"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func postForm(env *testEnv, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/whatsapp-webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWhatsAppWebhookConfirms(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.appts.Put(context.Background(), model.Appointment{
		ID: "01A", Phone: "501234567", Date: "2026-03-09", Time: "10:30", Status: model.AppointmentPending, CreatedAt: time.Now(),
	}))

	rec := postForm(env, url.Values{
		"From": {"whatsapp:+972501234567"}, "ButtonPayload": {"confirm"}, "MessageSid": {"SM1"},
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	a, err := env.appts.Get(context.Background(), "01A")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentConfirmed, a.Status)
	require.Len(t, env.sender.sent(), 1)
	assert.Equal(t, "HXCONF", env.sender.sent()[0].TemplateID)
}

func TestWhatsAppWebhookAlwaysAcknowledges(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = errors.New("down")

	rec := postForm(env, url.Values{"From": {"whatsapp:+972501234567"}, "Body": {"hi"}}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = postForm(env, url.Values{}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWhatsAppWebhookSignature(t *testing.T) {
	const publicURL = "https://clinic.example.com/api/whatsapp-webhook"
	env := newTestEnv(t, withConfig(func(c *config.Config) {
		c.Webhook.ValidateSignature = true
		c.Webhook.AuthToken = "token"
		c.Webhook.PublicURL = publicURL
		c.HTTP.APIKeys = []string{"k1"}
	}))
	form := url.Values{"From": {"whatsapp:+972501234567"}, "Body": {"hi"}}

	rec := postForm(env, form, map[string]string{"X-Twilio-Signature": "forged"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.sender.sent())

	// no API key needed on the webhook
	rec = postForm(env, form, map[string]string{"X-Twilio-Signature": webhook.Sign("token", publicURL, form)})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.sender.sent(), 1)
}

func TestAPIKeyGuardsAPI(t *testing.T) {
	env := newTestEnv(t, withConfig(func(c *config.Config) { c.HTTP.APIKeys = []string{"k1"} }))

	rec := env.do(http.MethodPost, "/api/send-whatsapp", `{"templateId":"T9","phone":"0501234567"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/send-whatsapp", `{"templateId":"T9","phone":"0501234567"}`, map[string]string{"X-API-Key": "k1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReminderAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.jobs.Put(ctx, model.ReminderJob{ID: "01A", Recipient: "1", TemplateID: "T", FireAt: time.Now().Add(time.Hour), Status: model.JobScheduled}))

	rec := env.do(http.MethodGet, "/api/reminders/01A", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode(t, rec)["job"].(map[string]any)
	assert.Equal(t, "scheduled", job["status"])

	rec = env.do(http.MethodGet, "/api/reminders/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodDelete, "/api/reminders/01A", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode(t, rec)["job"].(map[string]any)["status"])

	rec = env.do(http.MethodDelete, "/api/reminders/01A", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodGet, "/api/reminders?status=cancelled", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = env.do(http.MethodGet, "/api/reminders?status=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportsEvents(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/reports/events?phone=050-123-4567&status=failed&limit=5000&offset=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.EventFilter{Phone: "501234567", Status: "failed", Limit: 50, Offset: 10}, env.events.got)
	assert.Equal(t, float64(1), decode(t, rec)["count"])
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	env.health.WithProviders(func() map[string]bool { return map[string]bool{"twilio": true} })

	rec := env.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	env.health.SetRecovery(errors.New("list jobs: connection refused"))
	out := decode(t, env.do(http.MethodGet, "/healthz", "", nil))
	assert.Equal(t, "degraded", out["status"])
	assert.Contains(t, out["recovery"], "connection refused")
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodOptions, "/api/schedule-reminder", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(http.MethodOptions, "/api/schedule-reminder", "", map[string]string{
		"Origin":                        "https://evil.example",
		"Access-Control-Request-Method": "POST",
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
