// Package occurrence reads raw occurrence rows from the occurrence database.
//
// Only five columns matter for duplicate detection: dataset id, longitude,
// latitude, species id and year. Sources project those columns and hand each row
// to a callback; nothing is buffered beyond what the underlying reader needs.
//
// Rows that cannot be placed in a cell (missing year, latitude >= 90,
// longitude >= 180) are still delivered. Filtering is the aggregator's job and
// uses Record.Valid.
package occurrence
