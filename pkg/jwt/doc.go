// Package jwt verifies HS256 access tokens issued by the campus identity
// service and turns them into a Credential carrying the numeric user id.
//
// Only verification matters in production. Issue and Sign exist so tests
// and local tooling can mint tokens with the shared secret.
//
//	svc, err := jwt.New(cfg.JWTSecret)
//	cred, err := svc.Verify(token)
//
// Middleware protects HTTP routes with a bearer token and exposes the
// credential through CredentialFromContext.
package jwt
