// Package state persists the last-seen availability per product.
//
// Two drivers share one contract: an in-memory map that the cycle's workers
// read and commit against, flushed durably exactly once per cycle after all
// workers settle. The file driver writes one JSON document atomically; the
// sqlite driver upserts changed rows. A failed flush degrades durability,
// never correctness of the running process.
package state
