// Package state keeps per-user conversation sessions for Telegram bots.
// Sessions live in a Store (in-memory or Redis); turns of one user are
// serialised with a Locker while different users proceed concurrently.
package state
