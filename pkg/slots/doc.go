// Package slots decides which calendar cell to book.
//
// The engine is greedy: it scans the cells of the current calendar page in
// date order and picks the first enabled, available cell that satisfies the
// user's constraints. When nothing on the page qualifies it asks for the next
// page while the page budget lasts. Slots disappear under contention, so the
// first acceptable date beats a search for the best one.
//
// The Registry remembers dates seen per (country, consulate, service) across
// runs so the orchestrator can prioritise users that can take them.
package slots
