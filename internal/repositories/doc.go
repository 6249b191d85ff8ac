// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for stable ordering.
// Labels, csvfiles and datasets are soft deleted via deleted_at timestamps and excluded from queries by default.
// Images are derived data and are hard deleted.
//
// Key Implementations:
//   - [UserRepository] : User account persistence with email-based lookups
//   - [LabelRepository] : Labels with exact-name lookups scoped to an owner
//   - [CsvfileRepository] : Csvfile layout metadata and the stored file key
//   - [DatasetRepository] : Datasets with label and csvfile junction tables
//   - [ImageRepository] : Images keyed by (user, name, csvfile, row, label) with get-or-create
//
// Every repository can be bound to a transaction with WithTx; the upload pipeline uses this
// to create an image record and attach its artifacts atomically.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
