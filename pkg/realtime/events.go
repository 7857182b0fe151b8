package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Event names a frame on the wire. The set is closed and shared with clients;
// names must not change.
type Event string

// Server to client.
const (
	EventConnected                Event = "connected"
	EventNewNotification          Event = "new_notification"
	EventNotificationRead         Event = "notification_read"
	EventAllNotificationsRead     Event = "all_notifications_read"
	EventNotificationDeleted      Event = "notification_deleted"
	EventReadNotificationsCleared Event = "read_notifications_cleared"
	EventSystemAnnouncement       Event = "system_announcement"
	EventEnrollmentUpdate         Event = "enrollment_update"
	EventGradeUpdate              Event = "grade_update"
	EventJoinedRoom               Event = "joined_room"
	EventLeftRoom                 Event = "left_room"
	EventOnlineStatus             Event = "online_status"
)

// Client to server.
const (
	EventAuthenticate         Event = "authenticate"
	EventJoinRoom             Event = "join_room"
	EventLeaveRoom            Event = "leave_room"
	EventMarkNotificationRead Event = "mark_notification_read"
	EventGetOnlineStatus      Event = "get_online_status"
)

var serverEvents = map[Event]struct{}{
	EventConnected:                {},
	EventNewNotification:          {},
	EventNotificationRead:         {},
	EventAllNotificationsRead:     {},
	EventNotificationDeleted:      {},
	EventReadNotificationsCleared: {},
	EventSystemAnnouncement:       {},
	EventEnrollmentUpdate:         {},
	EventGradeUpdate:              {},
	EventJoinedRoom:               {},
	EventLeftRoom:                 {},
	EventOnlineStatus:             {},
}

var clientEvents = map[Event]struct{}{
	EventAuthenticate:         {},
	EventJoinRoom:             {},
	EventLeaveRoom:            {},
	EventMarkNotificationRead: {},
	EventGetOnlineStatus:      {},
}

// Valid reports whether e is a known event name.
func (e Event) Valid() bool {
	return e.FromServer() || e.FromClient()
}

// FromServer reports whether the server may emit e.
func (e Event) FromServer() bool {
	_, ok := serverEvents[e]
	return ok
}

// FromClient reports whether clients may send e.
func (e Event) FromClient() bool {
	_, ok := clientEvents[e]
	return ok
}

func (e Event) String() string { return string(e) }

// Envelope is the frame format in both directions: {"event": ..., "data": ...}.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a server frame. Only server events can be encoded.
func Encode(event Event, payload any) ([]byte, error) {
	if !event.FromServer() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Decode parses the envelope of a frame. The payload is left raw.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if !env.Event.Valid() {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into v.
func DecodeData[T any](env Envelope) (T, error) {
	var v T
	if len(env.Data) == 0 {
		return v, fmt.Errorf("%w: %s has no data", ErrMalformedFrame, env.Event)
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Event, err)
	}
	return v, nil
}

// UserGroup is the broadcast group every authenticated connection of a user joins.
func UserGroup(userID int64) string {
	return userGroupPrefix + strconv.FormatInt(userID, 10)
}

const userGroupPrefix = "user:"

type ConnectedPayload struct {
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

// NotificationRef identifies a notification in read and delete events.
type NotificationRef struct {
	NotificationID int64 `json:"notificationId"`
}

// Empty is the payload of the bulk sync events.
type Empty struct{}

type SystemAnnouncementPayload struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

type EnrollmentUpdatePayload struct {
	CourseID  int64     `json:"courseId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type GradeUpdatePayload struct {
	AssignmentID int64     `json:"assignmentId"`
	Grade        float64   `json:"grade"`
	Timestamp    time.Time `json:"timestamp"`
}

type RoomPayload struct {
	Room string `json:"room"`
}

type OnlineStatus struct {
	UserID int64 `json:"userId"`
	Online bool  `json:"online"`
}

type OnlineStatusRequest struct {
	UserIDs []int64 `json:"userIds"`
}

type AuthenticatePayload struct {
	Token string `json:"token"`
}
