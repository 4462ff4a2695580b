// Package persistence provides atomic, corruption-resistant snapshotting of
// the policy engine's Q-table to a single file on disk (§4.5: "Persistence").
//
// The snapshot format is CBOR, matching the base station's protocol event
// log encoding (pkg/log), and is self-describing via a version field: a
// reader that encounters a version mismatch or undecodable payload treats
// the file as corrupt and starts from zero rather than failing startup.
package persistence
