// Package revocation tracks invalidated token ids in Redis.
//
// Entries live exactly as long as the token they invalidate: the registry
// stores each id with a TTL equal to the token's remaining lifetime, so the
// blacklist never grows beyond the set of tokens that could still verify.
//
// Claim provides the atomic first-writer-wins primitive the engine uses to
// make refresh tokens single-use under concurrent rotation.
package revocation
