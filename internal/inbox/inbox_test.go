package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacuina/content-service/internal/notify"
	"github.com/lacuina/content-service/internal/siteconfig"
	"github.com/lacuina/content-service/internal/store"
)

var cet = time.FixedZone("CET", 3600)

// Tuesday noon
var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, cet)

type staticConfig struct{ doc siteconfig.Document }

func (s staticConfig) Get() siteconfig.Document { return s.doc }

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (r *recorder) Notify(ctx context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func newReservations(t *testing.T, doc siteconfig.Document, n notify.Notifier) *Reservations {
	t.Helper()
	r := NewReservations(store.NewMemoryStore(), staticConfig{doc}, n, cet)
	r.now = func() time.Time { return noon }
	return r
}

func request(date, at string, pax int) Reservation {
	return Reservation{Name: "Joan Puig", Phone: "+34 600 000 000", Pax: pax, Date: date, Time: at, Privacy: true}
}

func TestReservationSubmit(t *testing.T) {
	rec := &recorder{}
	svc := newReservations(t, siteconfig.Defaults(), rec)

	got, err := svc.Submit(context.Background(), request("2026-03-12", "20:30", 4))
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "2026-03-12T19:30:00Z", got.DateTimeISO)
	assert.Equal(t, noon.UnixMilli(), got.CreatedAt)

	require.Len(t, rec.events, 1)
	assert.Equal(t, notify.KindReservation, rec.events[0].Kind)
	assert.Equal(t, got.ID, rec.events[0].ID)

	list, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, got, list[0])
}

func TestReservationRules(t *testing.T) {
	tests := []struct {
		name  string
		req   Reservation
		field string
	}{
		{"too few", request("2026-03-12", "20:30", 0), "pax"},
		{"too many", request("2026-03-12", "20:30", 13), "pax"},
		{"unknown slot", request("2026-03-12", "19:00", 2), "time"},
		{"closed weekday", request("2026-03-16", "13:00", 2), "date"},
		{"in the past", request("2026-03-08", "13:00", 2), "date"},
		{"too far ahead", request("2026-05-10", "13:00", 2), "date"},
		{"bad date", request("12/03/2026", "13:00", 2), "date"},
		{"no name", Reservation{Phone: "600", Pax: 2, Date: "2026-03-12", Time: "13:00", Privacy: true}, "name"},
		{"no privacy", Reservation{Name: "A", Phone: "600", Pax: 2, Date: "2026-03-12", Time: "13:00"}, "privacy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newReservations(t, siteconfig.Defaults(), nil)
			_, err := svc.Submit(context.Background(), tt.req)
			require.ErrorIs(t, err, ErrInvalid)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestReservationWindowEdges(t *testing.T) {
	svc := newReservations(t, siteconfig.Defaults(), nil)
	// later today and the last admissible day
	_, err := svc.Submit(context.Background(), request("2026-03-10", "13:00", 2))
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), request("2026-05-09", "13:00", 2))
	require.NoError(t, err)
}

func TestReservationWithoutSlotsAcceptsAnyTime(t *testing.T) {
	doc := siteconfig.Defaults()
	doc.ReservationForm.TimeSlots = []string{}
	svc := newReservations(t, doc, nil)
	_, err := svc.Submit(context.Background(), request("2026-03-12", "19:45", 2))
	require.NoError(t, err)
}

func TestReservationClosedWhenFormIsNotReservation(t *testing.T) {
	for _, ft := range []siteconfig.FormType{siteconfig.FormContact, siteconfig.FormNone} {
		doc := siteconfig.Defaults()
		doc.Hero.FormType = ft
		svc := newReservations(t, doc, nil)
		_, err := svc.Submit(context.Background(), request("2026-03-12", "20:30", 2))
		require.ErrorIs(t, err, ErrReservationsClosed, ft)
	}
}

func TestReservationNotifyFailureIsNotFatal(t *testing.T) {
	svc := newReservations(t, siteconfig.Defaults(), &recorder{err: errors.New("broker down")})
	_, err := svc.Submit(context.Background(), request("2026-03-12", "20:30", 2))
	require.NoError(t, err)
}

func TestReservationListAndStatus(t *testing.T) {
	svc := newReservations(t, siteconfig.Defaults(), nil)
	ctx := context.Background()
	late, err := svc.Submit(ctx, request("2026-03-20", "21:00", 2))
	require.NoError(t, err)
	early, err := svc.Submit(ctx, request("2026-03-11", "13:00", 2))
	require.NoError(t, err)

	list, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, early.ID, list[0].ID)
	assert.Equal(t, late.ID, list[1].ID)

	require.NoError(t, svc.SetStatus(ctx, late.ID, StatusConfirmed))
	confirmed, err := svc.List(ctx, Filter{Status: StatusConfirmed})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, late.ID, confirmed[0].ID)

	fromLater, err := svc.List(ctx, Filter{From: "2026-03-15"})
	require.NoError(t, err)
	require.Len(t, fromLater, 1)

	require.ErrorIs(t, svc.SetStatus(ctx, late.ID, "maybe"), ErrInvalidStatus)
	require.ErrorIs(t, svc.SetStatus(ctx, "missing", StatusCancelled), ErrNotFound)

	require.NoError(t, svc.Delete(ctx, early.ID))
	require.ErrorIs(t, svc.Delete(ctx, early.ID), ErrNotFound)
}

func TestReservationWatch(t *testing.T) {
	svc := newReservations(t, siteconfig.Defaults(), nil)
	ctx := context.Background()

	var mu sync.Mutex
	var last []Reservation
	cancel, err := svc.Watch(ctx, func(rs []Reservation) {
		mu.Lock()
		last = rs
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cancel()

	_, err = svc.Submit(ctx, request("2026-03-12", "20:30", 2))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "confirmed", "cancelled"} {
		got, err := ParseStatus(s)
		require.NoError(t, err)
		require.Equal(t, Status(s), got)
	}
	_, err := ParseStatus("done")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func newMessages(t *testing.T, n notify.Notifier) (*Messages, *time.Time) {
	t.Helper()
	clock := noon
	m := NewMessages(store.NewMemoryStore(), n)
	m.now = func() time.Time { return clock }
	return m, &clock
}

func message() Message {
	return Message{Name: " Anna ", Email: "anna@example.com", Subject: "Horaris", Message: "Obriu el dilluns?", PrivacyAccepted: true}
}

func TestMessageSubmit(t *testing.T) {
	rec := &recorder{}
	svc, _ := newMessages(t, rec)

	got, err := svc.Submit(context.Background(), message())
	require.NoError(t, err)
	assert.Equal(t, "Anna", got.Name)
	assert.False(t, got.Read)
	assert.Equal(t, noon.UnixMilli(), got.Timestamp)
	require.Len(t, rec.events, 1)
	assert.Equal(t, "Anna <anna@example.com>: Horaris", rec.events[0].Summary)
}

func TestMessageValidation(t *testing.T) {
	svc, _ := newMessages(t, nil)

	m := message()
	m.PrivacyAccepted = false
	_, err := svc.Submit(context.Background(), m)
	require.ErrorIs(t, err, ErrInvalid)

	m = message()
	m.Email = "not-an-email"
	_, err = svc.Submit(context.Background(), m)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Field)

	m = message()
	m.Message = "   "
	_, err = svc.Submit(context.Background(), m)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "message", verr.Field)
}

func TestMessageInbox(t *testing.T) {
	svc, clock := newMessages(t, nil)
	ctx := context.Background()

	first, err := svc.Submit(ctx, message())
	require.NoError(t, err)
	*clock = clock.Add(time.Minute)
	second, err := svc.Submit(ctx, message())
	require.NoError(t, err)

	list, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	require.NoError(t, svc.MarkRead(ctx, first.ID, true))
	n, err := svc.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unread, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, second.ID, unread[0].ID)

	require.ErrorIs(t, svc.MarkRead(ctx, "missing", true), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, second.ID))
	require.ErrorIs(t, svc.Delete(ctx, second.ID), ErrNotFound)
}
