package inbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lacuina/content-service/internal/notify"
	"github.com/lacuina/content-service/internal/store"
	"github.com/lacuina/content-service/pkg/logger"
	"github.com/lacuina/content-service/pkg/metrics"
)

const MessagesCollection = "contactMessages"

type Message struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name" validate:"required,max=120"`
	Email           string `json:"email" validate:"required,email,max=200"`
	Phone           string `json:"phone" validate:"max=40"`
	Subject         string `json:"subject" validate:"max=200"`
	Message         string `json:"message" validate:"required,max=5000"`
	PrivacyAccepted bool   `json:"privacyAccepted"`
	Timestamp       int64  `json:"timestamp"` // unix ms
	Read            bool   `json:"read"`
}

type Messages struct {
	col      *store.Collection[Message]
	notifier notify.Notifier
	now      func() time.Time
}

func NewMessages(st store.Store, n notify.Notifier) *Messages {
	if n == nil {
		n = notify.Nop{}
	}
	return &Messages{col: store.NewCollection[Message](st, MessagesCollection), notifier: n, now: time.Now}
}

// Submit stores a message from the public contact form.
func (s *Messages) Submit(ctx context.Context, m Message) (Message, error) {
	m.ID = ""
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Phone = strings.TrimSpace(m.Phone)
	m.Subject = strings.TrimSpace(m.Subject)
	m.Message = strings.TrimSpace(m.Message)
	if err := check(m); err != nil {
		metrics.Submissions.WithLabelValues("contact", "invalid").Inc()
		return Message{}, err
	}
	if !m.PrivacyAccepted {
		metrics.Submissions.WithLabelValues("contact", "invalid").Inc()
		return Message{}, invalid("privacyAccepted", "cal acceptar la política de privacitat")
	}
	m.Timestamp = s.now().UnixMilli()
	m.Read = false

	id, err := s.col.Add(ctx, m)
	if err != nil {
		metrics.Submissions.WithLabelValues("contact", "error").Inc()
		return Message{}, fmt.Errorf("store message: %w", err)
	}
	m.ID = id
	metrics.Submissions.WithLabelValues("contact", "ok").Inc()

	summary := m.Name + " <" + m.Email + ">"
	if m.Subject != "" {
		summary += ": " + m.Subject
	}
	if err := s.notifier.Notify(ctx, notify.Event{Kind: notify.KindContactMessage, ID: id, Summary: summary, OccurredAt: s.now(), Payload: m}); err != nil {
		logger.Warnf("inbox: notify message %s: %v", id, err)
	}
	return m, nil
}

// List returns messages newest first.
func (s *Messages) List(ctx context.Context, unreadOnly bool) ([]Message, error) {
	all, err := s.col.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return sortMessages(all, unreadOnly), nil
}

func sortMessages(all map[string]Message, unreadOnly bool) []Message {
	out := make([]Message, 0, len(all))
	for id, m := range all {
		if unreadOnly && m.Read {
			continue
		}
		m.ID = id
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Messages) UnreadCount(ctx context.Context) (int, error) {
	unread, err := s.List(ctx, true)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

func (s *Messages) MarkRead(ctx context.Context, id string, read bool) error {
	return notFound(s.col.Patch(ctx, id, map[string]interface{}{"read": read}))
}

func (s *Messages) Delete(ctx context.Context, id string) error {
	return notFound(s.col.Delete(ctx, id))
}

// Watch calls fn with the full, sorted message list on every change.
func (s *Messages) Watch(ctx context.Context, fn func([]Message)) (func(), error) {
	return s.col.Watch(ctx, func(all map[string]Message) {
		fn(sortMessages(all, false))
	})
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidPath) {
		return ErrNotFound
	}
	return err
}
