package vector

import "errors"

// ErrConnection is returned when the vector store connection fails.
var ErrConnection = errors.New("vector store connection failed")
