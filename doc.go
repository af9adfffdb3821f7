// Package dupfinder finds datasets that were published more than once.
//
// Occurrence records are aggregated into counts per dataset and spatial cell
// (geohash prefix, species, year). Each dataset becomes a sparse vector over
// the cells, and every pair of datasets is compared with cosine similarity.
// Pairs above a threshold are shortlisted together with dataset metadata.
//
// # Quick Start
//
//	ctx := context.Background()
//	p, _ := dupfinder.Open(blobstore.NewLocalStore("./work"))
//	src, _ := occurrence.NewFileSource("occurrence.csv.zst")
//	report, err := p.Run(ctx, src)
//
// # Runs and Resume
//
// A run writes its pairs to results parts and records progress in a manifest
// (see internal/manifest). When some ranges fail, Run returns the report
// together with a *similarity.PartialError. Resume recomputes only the
// ranges the manifest does not list as completed:
//
//	report, err = p.Resume(ctx, src)
//
// The input must describe the same datasets; otherwise Resume returns
// ErrFingerprintMismatch.
//
// # Shortlist
//
// Shortlist reads the persisted parts, keeps pairs strictly above the
// threshold and joins metadata from any metadata.Lookup:
//
//	lookup, _ := metadata.OpenSQLite(ctx, "datasets.db", "dataset")
//	candidates, err := p.Shortlist(ctx, lookup)
//
// # Storage
//
// Any blobstore.BlobStore can hold a run: local disk, memory, S3 or MinIO.
package dupfinder
