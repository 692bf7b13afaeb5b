package imaging

import "errors"

// Sentinel errors returned by the imaging operations. Callers match them with
// errors.Is; the wrapped message carries the offending value.
var (
	// ErrImageDecode indicates the input bytes are not a decodable raster image.
	ErrImageDecode = errors.New("image decode failed")

	// ErrInvalidColorFormat indicates a reference tone that is not exactly six
	// hex digits after stripping an optional leading '#'.
	ErrInvalidColorFormat = errors.New("invalid color format")

	// ErrDimensionMismatch indicates paired buffers (image/mask, image/alpha)
	// whose spatial sizes differ.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidParameter indicates a tuning parameter outside its valid range.
	ErrInvalidParameter = errors.New("invalid parameter")
)
