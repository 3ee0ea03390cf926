package server

import "errors"

// ErrOversizeDatagram is returned when an encoded outgoing datagram exceeds
// maxDatagramBytes.
var ErrOversizeDatagram = errors.New("neteria: outgoing datagram exceeds size limit")
