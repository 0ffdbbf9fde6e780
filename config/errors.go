package config

import "errors"

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrMongoUnreachable = errors.New("failed to connect to mongodb")
)
