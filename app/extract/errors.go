package extract

import (
	"fmt"
)

// UsageError is returned if the extractor has been called with invalid arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// MissingFileError is returned if an input doesn't exist or doesn't match any file.
type MissingFileError struct {
	Path string
	Err  error
}

func (e *MissingFileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: input file not found: %s", e.Path, e.Err.Error())
	}

	return fmt.Sprintf("%s: input file not found", e.Path)
}

func (e *MissingFileError) Unwrap() error {
	return e.Err
}

// SegmentError is returned if the extraction of a segment failed.
type SegmentError struct {
	Segment MediaSegment
	Err     error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d (%s): %s", e.Segment.Index, e.Segment.Path, e.Err.Error())
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}
