// Package simpledocs provides a reusable library for multi-tenant document
// storage with versioning, backed by pluggable metadata repositories and blob
// storage backends.
//
// It exposes a single Service interface that orchestrates document creation,
// version appends with content-hash deduplication, soft-delete/restore,
// archival, and permanent deletion, keeping metadata rows and blob content
// consistent across the multi-step upload-then-insert sequence.
// Implementations of repositories (e.g., memory, Postgres) and blob stores
// (e.g., memory, filesystem, S3) are provided under subpackages.
//
// Consistency Strategy
//
// Blob and metadata stores are independent systems, so operations follow a
// fixed ordering discipline: blob content is staged first, the metadata
// mutation commits last, and a failed metadata commit triggers a best-effort
// compensating delete of the staged blob. A dangling blob is an acceptable
// residual cost; inconsistent metadata is not.
package simpledocs
