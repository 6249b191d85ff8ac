// Package server provides HTTP routing, middleware, and the JSON API of the dataset service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation registers "METHOD /path" patterns on an [http.ServeMux],
// so path parameters come from [http.Request.PathValue] and the matched pattern from
// [http.Request.Pattern].
//
// # Middleware
//
//   - [Logging] logs one line per request
//   - [Recover] turns panics into 500s
//   - [RateLimit] applies a token bucket per client IP
//   - [Authenticate] requires an HS256 bearer token whose "user" claim names an existing user
//   - [CORS] and [Compress] wrap the whole router
//
// # Handlers
//
// Each resource is a [Handler] that lists the patterns it serves and dispatches on the
// matched pattern:
//
//	GET  /health
//	GET  /labels, POST /labels
//	GET  /csvfiles, POST /csvfiles, GET /csvfiles/{id}
//	POST /csvfiles/{id}/upload-csvfile
//	GET  /datasets, POST /datasets, GET /datasets/{id}
//	GET  /images, GET /images/{id}, GET /images/{id}/bitmap, GET /images/{id}/array
//
// Request bodies are validated against embedded JSON schemas before decoding.
// Resources owned by another user are reported as not found.
//
// # Errors
//
// Handlers return sentinel errors from the shared package; writeError maps them to a status
// and a JSON payload with "error", "code" and, for upload row failures, "row".
package server
