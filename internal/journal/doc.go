// Package journal records what a serving session did in an append-only
// SQLite database.
//
// A journal holds one row per session, one row per handled request
// (exchange) and one row per library merged into the environment. Rows are
// ordered by a per-session logical clock, never by wall time.
//
// The journal is optional. The engine logs write failures and keeps
// serving.
package journal
