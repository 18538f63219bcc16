// Package handlers provides the HTTP handlers for the image API.
//
// It includes handlers for:
//   - Directory listing
//   - Image metadata and ratings
//   - Thumbnails, single and batched
//   - Thumbnail cache maintenance
//   - Health checks, version and metrics
//
// Every path parameter is relative to the image root and is resolved by
// the scanner, so requests cannot reach files outside it. Errors are JSON
// objects of the form {"error": "..."}; the status code follows the error
// kind (see statusFor).
package handlers
