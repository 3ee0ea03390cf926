package client

import "errors"

// ErrNotRegistered is returned by Event when called before the client has
// completed registration; any EVENT attempted while unregistered is
// dropped locally rather than sent.
var ErrNotRegistered = errors.New("neteria: client not registered")

// ErrOversizeDatagram is returned when an encoded outgoing datagram exceeds
// maxDatagramBytes.
var ErrOversizeDatagram = errors.New("neteria: outgoing datagram exceeds size limit")
