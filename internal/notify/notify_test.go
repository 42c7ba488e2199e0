package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
)

func sampleAppointment() domain.Appointment {
	return domain.Appointment{
		ID:              uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		VeterinarianID:  uuid.MustParse("00000000-0000-0000-0000-0000000000a1"),
		ClientID:        uuid.MustParse("00000000-0000-0000-0000-00000000c001"),
		PetID:           uuid.MustParse("00000000-0000-0000-0000-00000000e001"),
		AppointmentType: "checkup",
		Date:            calendar.NewDate(2026, 1, 5),
		StartTime:       calendar.NewTimeOfDay(9, 0),
		EndTime:         calendar.NewTimeOfDay(9, 30),
		DurationMinutes: 30,
		Status:          domain.StatusCompleted,
	}
}

var occurredAt = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func TestLogNotifierWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	ev := domain.NewAppointmentEvent(domain.EventAppointmentRescheduled, sampleAppointment(), occurredAt)
	prevDate, prevStart := calendar.NewDate(2026, 1, 6), calendar.NewTimeOfDay(14, 0)
	ev.PreviousDate, ev.PreviousStartTime = &prevDate, &prevStart
	require.NoError(t, n.Notify(context.Background(), ev))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "appointment event", line["msg"])
	assert.Equal(t, "notify", line["component"])
	assert.Equal(t, "appointment.rescheduled", line["event"])
	assert.Equal(t, "2026-01-05", line["date"])
	assert.Equal(t, "09:00", line["start_time"])
	assert.Equal(t, "2026-01-06", line["previous_date"])
	assert.Equal(t, "14:00", line["previous_start_time"])
}

func TestEventJSONShape(t *testing.T) {
	ev := domain.NewAppointmentEvent(domain.EventAppointmentCreated, sampleAppointment(), occurredAt)
	body, err := encode(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "appointment.created", decoded["type"])
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", decoded["appointment_id"])
	assert.Equal(t, "09:30", decoded["end_time"])
	assert.NotContains(t, decoded, "previous_date")
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestAMQPRoutesByEventType(t *testing.T) {
	ch := &fakeChannel{}
	n := &AMQP{exchange: DefaultExchange, ch: ch}

	ev := domain.NewAppointmentEvent(domain.EventAppointmentCancelled, sampleAppointment(), occurredAt)
	require.NoError(t, n.Notify(context.Background(), ev))

	assert.Equal(t, DefaultExchange, ch.exchange)
	assert.Equal(t, "appointment.cancelled", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111:appointment.cancelled", ch.msg.MessageId)

	var decoded domain.AppointmentEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, ev.AppointmentID, decoded.AppointmentID)
	assert.True(t, ev.Date.Equal(decoded.Date))

	require.NoError(t, n.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublishFailure(t *testing.T) {
	n := &AMQP{exchange: DefaultExchange, ch: &fakeChannel{err: amqp.ErrClosed}}
	err := n.Notify(context.Background(), domain.NewAppointmentEvent(domain.EventAppointmentCreated, sampleAppointment(), occurredAt))
	require.Error(t, err)
	assert.True(t, errors.Is(err, amqp.ErrClosed))
}

type capturePublisher struct {
	events []domain.AppointmentEvent
}

func (p *capturePublisher) Notify(ctx context.Context, ev domain.AppointmentEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func TestConsultationRequester(t *testing.T) {
	p := &capturePublisher{}
	r := NewConsultationRequester(p)
	r.now = func() time.Time { return occurredAt }

	require.NoError(t, r.CreateFromAppointment(context.Background(), sampleAppointment()))
	require.Len(t, p.events, 1)
	assert.Equal(t, domain.EventConsultationRequested, p.events[0].Type)
	assert.Equal(t, occurredAt, p.events[0].OccurredAt)
	assert.Equal(t, domain.StatusCompleted, p.events[0].Status)
}

func TestRedisPublish(t *testing.T) {
	addr := os.Getenv("VETCARE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VETCARE_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	channel := "vetcare:test:" + uuid.NewString()
	sub := client.Subscribe(ctx, channel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := NewRedis(client, channel)
	require.NoError(t, n.Notify(ctx, domain.NewAppointmentEvent(domain.EventAppointmentConfirmed, sampleAppointment(), occurredAt)))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var decoded domain.AppointmentEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &decoded))
	assert.Equal(t, domain.EventAppointmentConfirmed, decoded.Type)
}
