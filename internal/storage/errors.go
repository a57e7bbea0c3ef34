package storage

import "errors"

var errMockSink = errors.New("mock sink: forced failure")
