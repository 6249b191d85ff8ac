// Package tasks runs the CSV upload pipeline with real-time progress reporting.
//
// # Core Operations
//
//  1. [UploadEngine.Process] : convert an uploaded CSV into images
//     - Validates the csvfile's pixel column range before reading any input
//     - Skips the header line, then decodes, resolves, encodes and upserts each row in file order
//     - Aborts on the first failing row with a [*RowError]; earlier rows stay persisted
//
//     - [SourceUploader.Upload] stores the CSV itself, attaches it to the csvfile and then runs Process
//
//  2. [DatasetExporter.Export] : write a dataset's images to a directory tree
//     - One folder per label, fetched from blob storage by a rate limited worker pool
//     - Writes a manifest and a README describing the export
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Implementation
//
// [UploadEngine] depends on:
//   - [Resolver] : label lookup by exact name, [LabelResolver] caches hits in freecache
//   - [Upserter] : record and blob persistence, [ImageUpserter] writes both blobs before a
//     short transaction that creates or updates the image record
package tasks
