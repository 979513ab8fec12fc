// Package output encodes scan documents deterministically and writes them,
// optionally compressed.
//
// # Encoding Rules
//
// The deterministic encoders produce byte-identical output for equal input:
//
//  1. Stable key ordering: object keys are sorted alphabetically
//  2. Float formatting: rounded to max 6 decimal places
//  3. Null handling: nil fields are omitted entirely
//
// # Compression
//
// Output paths ending in .zst are zstd-compressed and paths ending in .gz are
// gzip-compressed. Any other path is written as is.
package output
