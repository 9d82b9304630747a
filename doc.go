// Package restflight orchestrates batches of HTTP calls on the client side.
//
// A Call describes one logical network operation: target, encoding, accepted
// status codes, an ordered registry of response handlers and an optional set
// of interceptors. Calls are built through CallBuilder and submitted in
// batches to Service.Execute under a Policy (parallel or sequential, each in
// fail-fast or best-effort flavor).
//
// Every started call is interpreted under four content kinds in parallel
// (raw bytes, JSON, text, headers-only). Each interpretation is resolved
// against the call's handlers independently and the four outcomes are
// aggregated into a single per-call result, which in turn feeds the single
// batch result. All results arrive asynchronously through completion queues,
// never on the goroutine that produced them.
package restflight
