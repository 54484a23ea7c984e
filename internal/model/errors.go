package model

import "errors"

var (
	// ErrUpstreamFailure covers network and parse errors talking to the market-data API.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrNoDataAvailable means the store or an aggregate query returned nothing.
	ErrNoDataAvailable = errors.New("no data available")
	// ErrArchiveWriteFailure means a partition directory or file could not be written.
	ErrArchiveWriteFailure = errors.New("archive write failure")
	// ErrForecastFailed means the aggregate or persist step of a forecast failed.
	ErrForecastFailed = errors.New("forecast failed")
	// ErrNotFound means a requested record does not exist.
	ErrNotFound = errors.New("not found")
)
