// Package users is the read-only view of campus accounts used by the
// notifier: existence checks before a notification is stored, active-user
// checks when a realtime connection authenticates, and audience resolution
// for system announcements.
//
// MemoryDirectory, SQLiteDirectory and PostgresDirectory all implement Lookup.
package users
