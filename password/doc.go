// Package password implements password hashing and verification with
// Argon2id.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The parameters used to produce a hash travel inside it, so verification
// works across parameter changes. [Hasher.NeedsRehash] reports when a stored
// hash was produced with weaker parameters than the current configuration,
// letting callers re-hash on the next successful login.
//
// Password policy (minimum length, reuse rules) is enforced by the engine,
// not here; this package hashes whatever bytes it is given.
package password
