// Package metadata resolves dataset ids to descriptive metadata used when
// presenting duplicate candidates.
//
// A Lookup reports a missing dataset with found == false and a nil error.
// Errors are reserved for failures of the backing store.
//
// Implementations:
//
//   - Map: in memory, also the result of LoadJSON
//   - SQLiteLookup: a local SQLite table (modernc.org/sqlite, no cgo)
//   - DynamoLookup: a DynamoDB table keyed by id
//   - HTTPLookup: the OBIS REST API, rate limited
//   - Cached: memoises any Lookup, collapsing concurrent requests
package metadata
