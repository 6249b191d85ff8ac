// Package convert turns CSV rows into square grayscale images.
//
// The three steps are pure functions:
//   - [Validate] derives the image side length from an inclusive pixel column range
//   - [Decode] splits a row into its label token and pixel tokens
//   - [Encode] parses pixel tokens into an [Encoded] grid, which renders as an 8-bit
//     BMP ([Encoded.Bitmap]) and as a gonum matrix of intensities scaled to [0,1] ([Encoded.Array])
package convert
