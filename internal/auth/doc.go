// Package auth issues and verifies the JWT access tokens that identify the
// actor behind every API request.
//
// Tokens are HS256-signed with security.jwt.secret and carry the user id as
// the subject. User accounts themselves live outside pinctl Core; the
// `pinctl token <user-id>` command mints a token for an existing identity.
package auth
