// Package notifications stores per-user notifications and keeps connected
// clients in sync with them.
//
// The Store is the source of truth. It checks that the recipient exists on
// create, enforces ownership on every per-record read and mutation, and
// sets readAt exactly once. Storage backends exist for memory, SQLite and
// PostgreSQL.
//
// Factory constructors such as EnrollmentDecision and AssignmentGraded
// produce a Draft with fixed wording and metadata for each domain event.
//
// The Service sits in front of the Store. After each successful write it
// pushes the matching event through a Pusher, usually the realtime
// gateway:
//
//	svc := notifications.NewService(store, directory, gateway)
//	n, err := svc.Create(ctx, notifications.EnrollmentDecision(e, d).For(studentID))
//
// Push failures are never reported. Bulk creation skips targets that fail
// and returns what was stored.
package notifications
