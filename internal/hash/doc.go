// Package hash provides CRC32-Castagnoli checksums.
//
// CRC32C is used for S3 upload integrity and for fingerprinting the ordered list
// of dataset ids a similarity run was planned over. A resumed run must see the
// same fingerprint, otherwise outer index ranges would refer to different datasets.
//
//	checksum := hash.CRC32C(data)
//	fp := hash.Fingerprint(sortedIDs)
package hash
