package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrCorpusMissing = errors.New("corpus root missing")
)
