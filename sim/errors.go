package sim

import "errors"

// ErrProtocol signals a malformed or unrecognized driver command line. It
// never halts the simulation (SPEC_FULL.md §7): the driver reports it as
// an error object on the response line and continues reading commands.
var ErrProtocol = errors.New("protocol error")
