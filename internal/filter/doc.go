// Package filter implements the column filter pipeline.
//
// Each stored column names an ordered list of filters. Writing applies them
// in order; reading applies them in reverse.
//
// # Supported Filters
//
//   - Shuffle (ID 2): Byte shuffling via [Shuffle]. Groups byte j of every
//     element together so floating-point columns compress better.
//
//   - Fletcher32 (ID 3): Checksum via [Fletcher32Filter]. Appends a 32-bit
//     Fletcher checksum and verifies it on read.
//
//   - Zstd (ID 32015): Zstandard compression via [Zstd], backed by
//     github.com/klauspost/compress/zstd.
//
// The usual order is [Shuffle, Zstd, Fletcher32]: shuffle exposes runs,
// zstd compresses them and the checksum covers the compressed bytes.
//
// # Key Types
//
//   - [Filter]: Interface implemented by all filters
//   - [Spec]: Persisted (ID, params) pair for one stage
//   - [Pipeline]: Ordered sequence of filters
package filter
