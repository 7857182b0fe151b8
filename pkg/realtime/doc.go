// Package realtime is the WebSocket gateway that pushes notification events
// to connected users.
//
// Every connection moves through Connecting, Authenticating, Authenticated
// and Disconnected. A bearer token is read from the Authorization header,
// the token query parameter, or an authenticate frame sent first; it must
// verify and resolve to an active user before AuthTimeout elapses.
// Otherwise the socket is closed with a policy-violation frame and nothing
// is registered. Authenticated connections are recorded in the Presence
// registry and join the user:<id> group.
//
// Frames are JSON envelopes in both directions:
//
//	{"event":"new_notification","data":{...}}
//
// SendToUser, SendToUsers, SendToGroup and BroadcastAll are fire and
// forget. Pushing to an offline user does nothing. A connection whose send
// buffer is full is closed instead of blocking the caller.
package realtime
