package alerts_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sudo-init-do/skillbridge/internal/alerts"
	"github.com/sudo-init-do/skillbridge/internal/config"
	"github.com/sudo-init-do/skillbridge/internal/domain"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []alerts.EmailEnvelope
	err  error
}

func (m *recordingMailer) Send(_ context.Context, env alerts.EmailEnvelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, env)
	return nil
}

func TestEmailMuxSendsTask(t *testing.T) {
	mailer := &recordingMailer{}
	mux := alerts.NewEmailMux(mailer, zaptest.NewLogger(t))

	job := alerts.EmailJob{
		Task:     alerts.TaskOrderAccepted,
		OrderID:  "o1",
		Envelope: alerts.EmailEnvelope{To: "buyer@example.com", Subject: "Your order has been accepted"},
	}
	task, err := alerts.NewEmailTask(job, 3)
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, job.Envelope, mailer.sent[0])
}

func TestEmailMuxErrors(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	mux := alerts.NewEmailMux(mailer, zaptest.NewLogger(t))

	bad := asynq.NewTask(alerts.TaskOrderPlaced, []byte("{not json"))
	assert.ErrorIs(t, mux.ProcessTask(context.Background(), bad), asynq.SkipRetry)

	task, err := alerts.NewEmailTask(alerts.EmailJob{Task: alerts.TaskOrderPlaced}, 3)
	require.NoError(t, err)
	err = mux.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestPlunkMailer(t *testing.T) {
	var got map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		if got["to"] == "reject@example.com" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"invalid"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := alerts.NewPlunkMailer(config.PlunkConfig{APIKey: "pk", From: "noreply@example.com", APIURL: srv.URL}, "help@example.com", srv.Client())

	require.NoError(t, m.Send(context.Background(), alerts.EmailEnvelope{To: "a@example.com", Subject: "s", Body: "b"}))
	assert.Equal(t, "Bearer pk", auth)
	assert.Equal(t, "a@example.com", got["to"])
	assert.Equal(t, "help@example.com", got["reply"])

	err := m.Send(context.Background(), alerts.EmailEnvelope{To: "reject@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=422")
}

func TestNewMailer(t *testing.T) {
	logger := zaptest.NewLogger(t)

	m, err := alerts.NewMailer(config.Config{MailProvider: "log"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &alerts.LogMailer{}, m)
	assert.NoError(t, m.Send(context.Background(), alerts.EmailEnvelope{To: "x@example.com"}))

	_, err = alerts.NewMailer(config.Config{MailProvider: "smtp"}, logger)
	assert.Error(t, err)

	_, err = alerts.NewMailer(config.Config{MailProvider: "plunk"}, logger)
	assert.Error(t, err)

	_, err = alerts.NewMailer(config.Config{MailProvider: "pigeon"}, logger)
	assert.Error(t, err)
}

func TestBuildMessageDetectsHTML(t *testing.T) {
	plain := alerts.BuildMessageForTest("from@example.com", "", alerts.EmailEnvelope{To: "to@example.com", Subject: "Hi", Body: "hello"})
	assert.Contains(t, plain, "Content-Type: text/plain")
	assert.NotContains(t, plain, "Reply-To")

	html := alerts.BuildMessageForTest("from@example.com", "help@example.com", alerts.EmailEnvelope{Body: "<html><body>hi</body></html>"})
	assert.Contains(t, html, "Content-Type: text/html")
	assert.Contains(t, html, "Reply-To: help@example.com\r\n")
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestKafkaPublisherKeysByOrder(t *testing.T) {
	w := &fakeWriter{}
	pub := alerts.NewKafkaPublisherForTest(w, 8, zaptest.NewLogger(t))
	pub.Start(context.Background())

	evt := domain.Event{
		ID:         "e1",
		Type:       domain.EventOrderAccepted,
		Order:      domain.Order{ID: "o1", Status: domain.StatusInProgress},
		OccurredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(context.Background(), evt))
	pub.Close()

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o1", string(w.msgs[0].Key))
	assert.True(t, w.closed)

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, domain.EventOrderAccepted, decoded.Type)
	assert.Equal(t, "order.accepted", string(w.msgs[0].Headers[0].Value))

	assert.Error(t, pub.Publish(context.Background(), evt))
}
