package eventstream

import "errors"

// ErrNilChatEvent indicates a nil chat event payload was provided to a publisher.
var ErrNilChatEvent = errors.New("nil chat event")
