package analyzer

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrInputNotFound also matches fs.ErrNotExist.
	ErrInputNotFound = fmt.Errorf("input video not found: %w", fs.ErrNotExist)
	ErrOpenInput     = errors.New("cannot open video file")
	ErrCreateOutput  = errors.New("cannot create output video")
	ErrWriteFrame    = errors.New("cannot write output frame")
	ErrReleased      = errors.New("analyzer already released")
	// ErrAborted is returned when the context ends or the pose estimator
	// becomes unusable part way through a video.
	ErrAborted = errors.New("video processing aborted")
)
