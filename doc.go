// Package authcore implements the authentication core of the studydeck
// platform: credential signup and login, refresh-token rotation with replay
// detection, multi-device session tracking, email verification, and the
// password-recovery state machine.
//
// The package exposes an [Engine] that composes a relational credential
// store, a Redis-backed session store, a JWT codec, an argon2id password
// hasher, and a one-time-code generator. All token and session invariants
// (single-use rotation, digest storage, matching refresh/session lifetimes)
// are enforced here rather than in the HTTP layer.
package authcore
