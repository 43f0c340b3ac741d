// Package cache stores synthesized speech clips keyed by voice and markup.
//
// Entries are immutable values. The in-memory tier (L1) is bounded by entry
// count and bytes and evicts oldest-first; large payloads are spooled to
// temporary files that are removed when their entry leaves the cache. An
// optional zstd-compressed disk tier (L2) keeps clips across runs.
package cache
