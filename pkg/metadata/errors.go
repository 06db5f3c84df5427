package metadata

import "errors"

var (
	// ErrMissingMetadata is returned when the image carries neither a
	// "prompt" nor a "parameters" text field, or the container cannot be read.
	ErrMissingMetadata = errors.New("no generation metadata found in image")
	// ErrMalformedMetadata is returned when the metadata field is not a JSON object.
	ErrMalformedMetadata = errors.New("generation metadata is not a valid node graph")
	// ErrCheckpointFormat is returned by RequireCheckpoint when no usable
	// checkpoint name is present.
	ErrCheckpointFormat = errors.New("checkpoint name missing or not a string")

	ErrUnsupportedImage = errors.New("unsupported image container")
	ErrCorruptImage     = errors.New("corrupt image container")
)
