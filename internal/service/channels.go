package service

// Signal bus channels the services publish on. The WebSocket hub relays
// each one to subscribed clients.
const (
	ChannelPositions = "positions"
	ChannelLocks     = "locks"
	ChannelPairs     = "pairs"
)
