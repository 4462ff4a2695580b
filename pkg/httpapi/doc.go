// Package httpapi implements the base station's read-only status surface
// (§4.8, §6): roster, overview, open issues, recent frames, recent
// commands, a clear-frames action, and three synthetic-issue convenience
// actions for manual testing without a real drone. It is the one component
// external UIs talk to; every handler only reads from the shared
// coordination state except the two explicitly-write actions (clear, and
// synthesizing a test issue), both of which are themselves read-only with
// respect to device/task invariants — a synthesized issue goes through the
// same Dispatcher.OnIssue path a real QR_SCAN would.
package httpapi
