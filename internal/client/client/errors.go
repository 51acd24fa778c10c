package client

import "errors"

var ErrUnavailable = errors.New("relay unavailable")
