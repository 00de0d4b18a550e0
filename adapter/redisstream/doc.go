// Package redisstream publishes domain events onto a Redis Stream so
// out-of-process consumers can observe them. It satisfies xcqrs.EventPublisher
// and never returns listener-raised events: the stream is fire-and-forget
// fan-out, not a reply channel.
//
// Minimal config:
//   - Addr: "host:port" (default "127.0.0.1:6379")
//   - Stream: stream key (default "xcqrs-events")
//   - MaxLenApprox: approximate stream trim length (0 = unbounded)
//
// Example:
//
//	pub, err := redisstream.NewPublisher(redisstream.Config{
//	    Addr:   "localhost:6379",
//	    Stream: "billing-events",
//	})
//	if err != nil { ... }
//	defer pub.Close()
//
//	bus, _ := xcqrs.NewBusBuilder().
//	    WithPublisher(xcqrs.NewCompositePublisher(registry, pub)).
//	    Build()
package redisstream
