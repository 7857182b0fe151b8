package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/campusnotify/pkg/logger"
	"github.com/dmitrymomot/campusnotify/pkg/metrics"
	"github.com/dmitrymomot/campusnotify/pkg/realtime"
	"github.com/dmitrymomot/campusnotify/pkg/users"
)

// Pusher delivers live events. Pushes are best effort and report nothing back.
type Pusher interface {
	SendToUser(ctx context.Context, userID int64, event realtime.Event, payload any)
	SendToUsers(ctx context.Context, userIDs []int64, event realtime.Event, payload any)
	SendEnrollmentUpdate(ctx context.Context, userID, courseID int64, status string)
	SendGradeUpdate(ctx context.Context, userID, assignmentID int64, grade float64)
	SendSystemAnnouncement(ctx context.Context, title, message string, userIDs []int64)
}

// NoopPusher drops every event. Used when no gateway is configured.
type NoopPusher struct{}

func (NoopPusher) SendToUser(context.Context, int64, realtime.Event, any)          {}
func (NoopPusher) SendToUsers(context.Context, []int64, realtime.Event, any)       {}
func (NoopPusher) SendEnrollmentUpdate(context.Context, int64, int64, string)      {}
func (NoopPusher) SendGradeUpdate(context.Context, int64, int64, float64)          {}
func (NoopPusher) SendSystemAnnouncement(context.Context, string, string, []int64) {}

// Service persists notifications through the Store and mirrors every change
// to the owner's live connections. The Store is authoritative: a push never
// affects the result of a call.
type Service struct {
	store  *Store
	users  users.Lookup
	pusher Pusher
	log    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for push and bulk failures.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// NewService wires the store, the user directory and the live event pusher.
func NewService(store *Store, lookup users.Lookup, pusher Pusher, opts ...ServiceOption) *Service {
	if pusher == nil {
		pusher = NoopPusher{}
	}
	s := &Service{
		store:  store,
		users:  lookup,
		pusher: pusher,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("notifications"))
	return s
}

// Create stores the notification and pushes it to the recipient if online.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Notification, error) {
	n, err := s.store.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.RecordNotificationCreated(string(n.Type))
	s.pusher.SendToUser(ctx, n.UserID, realtime.EventNewNotification, n)

	s.log.DebugContext(ctx, "notification created",
		logger.NotificationID(n.ID), logger.UserID(n.UserID), logger.NotificationType(string(n.Type)))
	return n, nil
}

// CreateBulk creates each request independently. Failed targets are logged
// and skipped; the result holds only the notifications that were stored.
func (s *Service) CreateBulk(ctx context.Context, reqs []CreateRequest) []*Notification {
	created := make([]*Notification, 0, len(reqs))
	for _, req := range reqs {
		n, err := s.Create(ctx, req)
		if err != nil {
			metrics.BulkFailures.Inc()
			s.log.WarnContext(ctx, "skipping bulk notification target",
				logger.UserID(req.UserID), logger.NotificationType(string(req.Type)), logger.Error(err))
			continue
		}
		created = append(created, n)
	}
	return created
}

// SystemRequest is a system notification. Empty UserIDs targets every active user.
type SystemRequest struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	UserIDs  []int64  `json:"userIds,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// CreateSystemNotification resolves the audience and creates one system
// notification per user. Unknown or inactive ids among explicit targets
// are skipped like any other bulk failure.
func (s *Service) CreateSystemNotification(ctx context.Context, req SystemRequest) ([]*Notification, error) {
	draft := SystemAnnouncement(req.Title, req.Message)
	draft.Metadata = req.Metadata
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	targets := req.UserIDs
	if len(targets) == 0 {
		active, err := s.users.FindAllActiveUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving active users: %w", err)
		}
		targets = userIDs(active)
	}
	return s.NotifyDraft(ctx, targets, draft), nil
}

// Announcement is an admin broadcast. Empty Roles addresses everyone.
type Announcement struct {
	Title    string       `json:"title"`
	Message  string       `json:"message"`
	Roles    []users.Role `json:"roles,omitempty"`
	Metadata Metadata     `json:"metadata,omitempty"`
}

// Announce stores a system notification for every active user in the
// selected roles and emits a system_announcement event to them.
func (s *Service) Announce(ctx context.Context, a Announcement) ([]*Notification, error) {
	draft := SystemAnnouncement(a.Title, a.Message)
	draft.Metadata = a.Metadata
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	for _, r := range a.Roles {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidNotification, r)
		}
	}

	var (
		audience []users.User
		err      error
	)
	if len(a.Roles) == 0 {
		audience, err = s.users.FindAllActiveUsers(ctx)
	} else {
		audience, err = s.users.FindActiveUsersByRoles(ctx, a.Roles...)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving announcement audience: %w", err)
	}

	ids := userIDs(audience)
	created := s.NotifyDraft(ctx, ids, draft)

	switch {
	case len(a.Roles) == 0:
		s.pusher.SendSystemAnnouncement(ctx, a.Title, a.Message, nil)
	case len(ids) > 0:
		s.pusher.SendSystemAnnouncement(ctx, a.Title, a.Message, ids)
	}

	s.log.InfoContext(ctx, "announcement sent", logger.Count(len(created)))
	return created, nil
}

// NotifyDraft sends the same draft to every user in userIDs.
func (s *Service) NotifyDraft(ctx context.Context, userIDs []int64, d Draft) []*Notification {
	reqs := make([]CreateRequest, 0, len(userIDs))
	for _, id := range userIDs {
		reqs = append(reqs, d.For(id))
	}
	return s.CreateBulk(ctx, reqs)
}

// NotifyEnrollmentDecision notifies the student and emits enrollment_update.
func (s *Service) NotifyEnrollmentDecision(ctx context.Context, studentID int64, e Enrollment, d Decision) (*Notification, error) {
	n, err := s.Create(ctx, EnrollmentDecision(e, d).For(studentID))
	if err != nil {
		return nil, err
	}
	s.pusher.SendEnrollmentUpdate(ctx, studentID, e.Course.ID, d.status())
	return n, nil
}

// NotifyAssignmentGraded notifies the student and emits grade_update.
func (s *Service) NotifyAssignmentGraded(ctx context.Context, studentID int64, a Assignment, grade float64, feedback string) (*Notification, error) {
	n, err := s.Create(ctx, AssignmentGraded(a, grade, feedback).For(studentID))
	if err != nil {
		return nil, err
	}
	s.pusher.SendGradeUpdate(ctx, studentID, a.ID, grade)
	return n, nil
}

// List returns one page of userID's notifications.
func (s *Service) List(ctx context.Context, userID int64, q ListQuery) (*Page, error) {
	return s.store.ListForUser(ctx, userID, q)
}

// Get returns the notification if requester owns it.
func (s *Service) Get(ctx context.Context, id, requester int64) (*Notification, error) {
	return s.store.GetOwned(ctx, id, requester)
}

// UnreadCount returns userID's unread count.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}

// Stats summarises userID's notifications.
func (s *Service) Stats(ctx context.Context, userID int64) (*Stats, error) {
	return s.store.StatsFor(ctx, userID)
}

// MarkAsRead marks the notification read and tells every device of the owner.
// Repeating the call is harmless and re-sends the sync event.
func (s *Service) MarkAsRead(ctx context.Context, id, requester int64) (*Notification, error) {
	n, err := s.store.MarkRead(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	s.pusher.SendToUser(ctx, requester, realtime.EventNotificationRead, realtime.NotificationRef{NotificationID: id})
	return n, nil
}

// MarkAllAsRead marks every unread notification read and tells the owner's devices.
func (s *Service) MarkAllAsRead(ctx context.Context, userID int64) (int, error) {
	count, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.pusher.SendToUser(ctx, userID, realtime.EventAllNotificationsRead, realtime.Empty{})
	return count, nil
}

// Remove deletes an owned notification and tells the owner's devices.
func (s *Service) Remove(ctx context.Context, id, requester int64) error {
	if err := s.store.Remove(ctx, id, requester); err != nil {
		return err
	}
	s.pusher.SendToUser(ctx, requester, realtime.EventNotificationDeleted, realtime.NotificationRef{NotificationID: id})
	return nil
}

// RemoveAllRead deletes the owner's read notifications and tells their devices.
func (s *Service) RemoveAllRead(ctx context.Context, userID int64) (int, error) {
	count, err := s.store.RemoveAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.pusher.SendToUser(ctx, userID, realtime.EventReadNotificationsCleared, realtime.Empty{})
	return count, nil
}

func validateDraft(d Draft) error {
	var problems []string
	if strings.TrimSpace(d.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(d.Message) == "" {
		problems = append(problems, "message is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidNotification, strings.Join(problems, "; "))
	}
	return nil
}

func userIDs(list []users.User) []int64 {
	ids := make([]int64, 0, len(list))
	for _, u := range list {
		ids = append(ids, u.ID)
	}
	return ids
}
