package live

import "github.com/ekurt/bottlederby/pkg/logger"

// HubOption applies a configuration option to the Hub.
type HubOption func(*Hub)

// WithSendBuffer sizes each client's outbound message buffer.
func WithSendBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}
