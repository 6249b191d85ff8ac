// Package models defines domain entities and persistence interfaces for the image dataset service.
//
// The package contains two categories of types:
//
// 1. Persistent Entities: Database-backed models owned by exactly one user
//   - [User] : Account that owns every other entity
//   - [Label] : Class name referenced by CSV rows
//   - [Csvfile] : Uploaded CSV source plus its column layout
//   - [Dataset] : Named grouping of labels and csvfiles
//   - [Image] : One converted CSV row (bitmap and normalized array blobs)
//
// 2. Views: Explicit output shapes for the HTTP API and CLI
//   - [LabelView], [CsvfileView], [CsvfileFileView]
//   - [DatasetView], [DatasetDetailView]
//   - [ImageView], [ImageDetailView]
//
// All persistent entities implement the Model interface providing ID, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
