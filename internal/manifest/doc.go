// Package manifest persists the state of a similarity run.
//
// # Overview
//
// A run manifest records which outer ranges of the pair enumeration have been
// computed, which failed, which results parts hold their output, and a
// fingerprint of the ordered dataset list. Resume uses it to compute only the
// missing ranges, and refuses to continue when the datasets changed.
//
// # Atomic Protocol
//
// Save follows a two-phase commit protocol:
//
//  1. Write the manifest to MANIFEST-NNNNNN.json (N is the save counter)
//  2. Atomically replace the CURRENT pointer with that name
//
// On local filesystems step 2 is a rename. On S3 and MinIO, overwrites are
// strongly consistent. Load reads CURRENT, then the manifest it names.
//
// # Thread Safety
//
// All Store methods are protected by a mutex and safe for concurrent use.
// A Manifest value is not; the pipeline mutates it from one goroutine.
package manifest
