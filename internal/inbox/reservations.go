package inbox

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lacuina/content-service/internal/notify"
	"github.com/lacuina/content-service/internal/siteconfig"
	"github.com/lacuina/content-service/internal/store"
	"github.com/lacuina/content-service/pkg/logger"
	"github.com/lacuina/content-service/pkg/metrics"
)

const ReservationsCollection = "reservations"

var (
	ErrReservationsClosed = errors.New("the site is not taking reservations")
	ErrInvalidStatus      = errors.New("invalid reservation status")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

type Reservation struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name" validate:"required,max=120"`
	Phone       string `json:"phone" validate:"required,max=40"`
	Pax         int    `json:"pax"`
	Notes       string `json:"notes" validate:"max=1000"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"required,datetime=15:04"`
	DateTimeISO string `json:"dateTimeIso"`
	CreatedAt   int64  `json:"createdAt"` // unix ms
	Status      Status `json:"status"`
	Privacy     bool   `json:"privacy"`
}

// ConfigSource yields the current site document.
type ConfigSource interface {
	Get() siteconfig.Document
}

type Reservations struct {
	col      *store.Collection[Reservation]
	config   ConfigSource
	notifier notify.Notifier
	loc      *time.Location
	now      func() time.Time
}

// NewReservations validates requests against the reservation form settings
// of cfg, interpreting dates in loc (the restaurant's timezone).
func NewReservations(st store.Store, cfg ConfigSource, n notify.Notifier, loc *time.Location) *Reservations {
	if n == nil {
		n = notify.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Reservations{
		col:      store.NewCollection[Reservation](st, ReservationsCollection),
		config:   cfg,
		notifier: n,
		loc:      loc,
		now:      time.Now,
	}
}

// Submit stores a pending reservation request from the public form.
func (s *Reservations) Submit(ctx context.Context, r Reservation) (Reservation, error) {
	doc := s.config.Get()
	if doc.Hero.FormType != siteconfig.FormReservation {
		metrics.Submissions.WithLabelValues("reservation", "closed").Inc()
		return Reservation{}, ErrReservationsClosed
	}

	r.ID = ""
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Notes = strings.TrimSpace(r.Notes)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	at, err := s.admissible(r, doc.ReservationForm)
	if err != nil {
		metrics.Submissions.WithLabelValues("reservation", "invalid").Inc()
		return Reservation{}, err
	}
	r.DateTimeISO = at.UTC().Format(time.RFC3339)
	r.CreatedAt = s.now().UnixMilli()
	r.Status = StatusPending

	id, err := s.col.Add(ctx, r)
	if err != nil {
		metrics.Submissions.WithLabelValues("reservation", "error").Inc()
		return Reservation{}, fmt.Errorf("store reservation: %w", err)
	}
	r.ID = id
	metrics.Submissions.WithLabelValues("reservation", "ok").Inc()

	summary := fmt.Sprintf("%s, %d pers., %s %s (%s)", r.Name, r.Pax, r.Date, r.Time, r.Phone)
	if err := s.notifier.Notify(ctx, notify.Event{Kind: notify.KindReservation, ID: id, Summary: summary, OccurredAt: s.now(), Payload: r}); err != nil {
		logger.Warnf("inbox: notify reservation %s: %v", id, err)
	}
	return r, nil
}

// admissible checks r against the form settings and returns its start time.
func (s *Reservations) admissible(r Reservation, form siteconfig.ReservationForm) (time.Time, error) {
	if err := check(r); err != nil {
		return time.Time{}, err
	}
	if !r.Privacy {
		return time.Time{}, invalid("privacy", "cal acceptar la política de privacitat")
	}
	if r.Pax < 1 || r.Pax < form.MinPax || (form.MaxPax > 0 && r.Pax > form.MaxPax) {
		return time.Time{}, invalid("pax", fmt.Sprintf("ha de ser entre %d i %d persones", max(form.MinPax, 1), form.MaxPax))
	}
	if len(form.TimeSlots) > 0 && !slices.Contains(form.TimeSlots, r.Time) {
		return time.Time{}, invalid("time", "l'hora no és disponible")
	}

	at, err := time.ParseInLocation("2006-01-02 15:04", r.Date+" "+r.Time, s.loc)
	if err != nil {
		return time.Time{}, invalid("date", "no té un format vàlid")
	}
	now := s.now().In(s.loc)
	if at.Before(now) {
		return time.Time{}, invalid("date", "la data ja ha passat")
	}
	if slices.Contains(form.ClosedWeekdays, int(at.Weekday())) {
		return time.Time{}, invalid("date", "el restaurant tanca aquest dia")
	}
	if form.MaxDaysAhead > 0 {
		y, m, d := now.Date()
		last := time.Date(y, m, d, 0, 0, 0, 0, s.loc).AddDate(0, 0, form.MaxDaysAhead+1)
		if !at.Before(last) {
			return time.Time{}, invalid("date", "només s'accepten reserves amb "+strconv.Itoa(form.MaxDaysAhead)+" dies d'antelació")
		}
	}
	return at, nil
}

// Filter narrows List. From is a YYYY-MM-DD date; reservations before it are
// left out.
type Filter struct {
	Status Status
	From   string
}

// List returns reservations ordered by when they take place.
func (s *Reservations) List(ctx context.Context, f Filter) ([]Reservation, error) {
	all, err := s.col.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return sortReservations(all, f), nil
}

func sortReservations(all map[string]Reservation, f Filter) []Reservation {
	out := make([]Reservation, 0, len(all))
	for id, r := range all {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.From != "" && r.Date < f.From {
			continue
		}
		r.ID = id
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DateTimeISO != out[j].DateTimeISO {
			return out[i].DateTimeISO < out[j].DateTimeISO
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out
}

func (s *Reservations) SetStatus(ctx context.Context, id string, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	return notFound(s.col.Patch(ctx, id, map[string]interface{}{"status": status}))
}

func (s *Reservations) Delete(ctx context.Context, id string) error {
	return notFound(s.col.Delete(ctx, id))
}

// Watch calls fn with every reservation, ordered, on every change.
func (s *Reservations) Watch(ctx context.Context, fn func([]Reservation)) (func(), error) {
	return s.col.Watch(ctx, func(all map[string]Reservation) {
		fn(sortReservations(all, Filter{}))
	})
}
