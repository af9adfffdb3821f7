// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion("eu-west-1"))
//	client := s3sdk.NewFromConfig(cfg)
//	store := s3.NewStore(client, "obis-exports", "duplicates/")
//
// Occurrence exports are read with ranged GETs. Result parts are streamed through
// a multipart upload; manifests are written with a single checksummed PUT.
package s3
