// Package storage persists uploaded files and derived artifacts in a gocloud blob bucket.
//
// Every stored object is written under a randomized key produced by [shared.UploadPath],
// so the name a client uploads with never reaches the bucket.
package storage
