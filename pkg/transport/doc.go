// Package transport implements the base station's two listeners and its
// outbound command dialer (§4.1):
//
//   - a UDP datagram listener for CONNECTION_REQUEST, HEARTBEAT, and
//     POSITION_UPDATE frames (discovery.go),
//   - a TCP stream listener accepting long-lived inbound device connections
//     framed as newline-delimited JSON (stream.go),
//   - a one-shot outbound TCP dialer used for CONNECTION_ACK and
//     MOVEMENT_COMMAND delivery (dialer.go).
//
// Listeners never mutate registry, issue, queue, or policy state directly;
// they decode and validate frames at the boundary (pkg/wire) and hand typed
// values to the dispatcher, reconciler, and registry methods those packages
// already expose. This keeps the lock order (registry → active-task table
// → Q-table, §5) entirely inside dispatch/reconcile/policy.
package transport
