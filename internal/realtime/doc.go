// Package realtime implements the collaboration transport for case rooms.
//
// A transport connection must authenticate before any room operation is
// accepted. Once authenticated it may join any case it is authorized to
// view, broadcast chat messages to the room (sender included, so every
// session observes one consistent transcript order), and signal typing
// state (sender excluded). On disconnect the registry removes the
// connection from every room and clears its presence entries.
//
// The registry is an owned object handed to the transport layer, never a
// package-level singleton, so tests can run any number of independent
// registries. Incoming frames form a closed set of typed messages
// dispatched through Client.handleMessage; event-name strings never reach
// the room logic.
//
// Failure semantics: authentication and room failures are structured
// result values reported to the offending connection only. No connection's
// error can affect other connections, rooms, or the process.
package realtime
