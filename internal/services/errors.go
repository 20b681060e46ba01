package services

import "errors"

var (
	ErrNoDataLoaded   = errors.New("no data loaded")
	ErrFileNotFound   = errors.New("file not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrPathNotAllowed = errors.New("path outside data directory")
)
