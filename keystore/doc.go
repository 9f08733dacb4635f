// Package keystore manages per-tenant data encryption keys and performs
// field-level encryption with them.
//
// Each tenant owns a versioned set of AES-256 keys stored in a single Redis
// hash. Encryption always uses the tenant's active version; decryption reads
// the version recorded in the ciphertext envelope, so values sealed before a
// rotation stay readable for as long as their key version is retained.
//
// Redis is the authority. A process-local read-through cache keeps the hot
// path off the network, bounded by a freshness window so rotations performed
// by other processes are observed promptly.
package keystore
