// Package results persists similarity results as flat text.
//
// The format is one header line followed by one line per pair:
//
//	x y similarity
//	ds-a ds-b 0.9731
//
// Values use plain decimal notation, never exponents. Readers accept space,
// tab or comma as the delimiter. Dataset ids must not contain whitespace or commas.
//
// Parts may be compressed with zstd or lz4; the codec is chosen from the
// name suffix (.zst, .lz4).
package results
