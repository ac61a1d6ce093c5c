// Package ingest turns a version token into a searchable index: it fetches
// raw pages, normalizes them into the on-disk cache and hands the result to
// the index builder.
//
// Two cache tiers short-circuit the work. A version that already has a
// vector index is left alone, and a version with a populated normalized
// directory is indexed from that directory without touching the network.
// Force bypasses both.
package ingest
