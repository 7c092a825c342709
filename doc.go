// Package auth implements the authentication core of the admin back office.
//
// Verification:
//   - Auther runs the two login paths. The dev path checks the shared admin
//     phone and a bcrypt password hash and is compiled out of binaries built with
//     the prodonly tag. The prod path verifies an identity provider assertion,
//     matches the proven contact against the single authorized administrator
//     and then requires the admin QR credential as a second factor.
//   - QRRegistry issues, verifies and revokes the QR credential. Only a hash
//     of the embedded secret is stored and reissuing invalidates the previous
//     code.
//
// Sessions:
//   - SessionIssuer is the only component that mints sessions. A session is
//     an access token (short lived JWT) bound through its sid claim to a
//     server side SessionRecord addressed by the hash of an opaque session
//     token. Records live in SQLite through bun or in Redis.
//   - Refresh keeps the session token and mints a new access token that never
//     outlives the record.
//
// HTTP:
//   - AuthController exposes the protocol over fiber and ProtectedRoute guards
//     other routes, storing the validated Session in the request context.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     issuer to describe login, refresh and revocation events. Sinks run
//     best-effort (errors are logged) so you can forward to a database or queue
//     without blocking authentication.
//
// The client package holds the client side half: token lifecycle, inactivity
// monitor, hidden entry gate and the login flow state machine.
package auth
