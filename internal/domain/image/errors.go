package image

import (
	"errors"
	"fmt"

	platformerrors "blog-image-server/internal/platform/errors"
)

var (
	// ErrNotFound means neither a variant artifact nor the original exists.
	ErrNotFound = errors.New("image not found")
	// ErrUnknownVariant is returned by Catalog.MustLookup for names outside the catalog.
	ErrUnknownVariant = errors.New("unknown variant")
	// ErrUnsupportedFormat is returned for output formats no encoder handles.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrEncoderUnavailable means the encoder exists but its backend is missing (ffmpeg for avif).
	ErrEncoderUnavailable = errors.New("encoder unavailable")
)

func metadataError(op, path string, err error) error {
	return platformerrors.WrapAs(platformerrors.KindMetadata, op,
		fmt.Sprintf("read metadata of %s", path), err)
}

func transcodeError(op, dest string, err error) error {
	return platformerrors.WrapAs(platformerrors.KindTranscode, op,
		fmt.Sprintf("transcode %s", dest), err)
}

func notFoundError(op, filename string) error {
	return platformerrors.WrapAs(platformerrors.KindNotFound, op,
		fmt.Sprintf("%s not found", filename), ErrNotFound)
}

// IsMetadataError reports whether err came from reading source metadata.
func IsMetadataError(err error) bool {
	return platformerrors.IsKind(err, platformerrors.KindMetadata)
}

// IsTranscodeError reports whether err came from a resize, encode or write step.
func IsTranscodeError(err error) bool {
	return platformerrors.IsKind(err, platformerrors.KindTranscode)
}

// IsNotFound reports whether err means the requested image does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || platformerrors.IsKind(err, platformerrors.KindNotFound)
}
