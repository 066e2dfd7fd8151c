package telemetry

import "github.com/fissio-dev/fissio/engine"

// Handler is the common shape of TracingHandler and MetricsHandler.
type Handler interface {
	Handle(e engine.Event)
}

// Combine fans one engine.Event out to every handler, in order.
func Combine(handlers ...Handler) engine.EventHandler {
	return func(e engine.Event) {
		for _, h := range handlers {
			h.Handle(e)
		}
	}
}
