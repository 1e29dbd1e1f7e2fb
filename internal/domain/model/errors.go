package model

import "errors"

// ErrUndeliverable marks a direct message that could not be delivered
// (closed DMs, bot blocked, user gone). Workflows treat it as a notice,
// never as a workflow failure.
var ErrUndeliverable = errors.New("direct message undeliverable")
