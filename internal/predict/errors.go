package predict

import "errors"

// ErrInvalidArgument is returned for non-positive cycle lengths or iteration
// counts and for malformed date input.
var ErrInvalidArgument = errors.New("invalid argument")
