package restflight

import "errors"

// ErrCallValidation occurs when a call description is malformed: unknown
// method, invalid URL, unknown encoding or an incomplete handler. Such misuse
// is rejected at build time, before any execution begins, and never surfaces
// through the Outcome channel.
var ErrCallValidation = errors.New("call validation")
