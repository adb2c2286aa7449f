package cluster

import "errors"

// ErrInvalidInput is returned (wrapped) for every rejected argument: empty
// input, inconsistent feature schemas, k or iteration counts below one, too
// few distinct entities, or a malformed score.
var ErrInvalidInput = errors.New("invalid input")
