// Package openmq is a native client for an OpenMQ message broker.
//
// The package implements the client-side session runtime: connection
// lifecycle with a background read channel, sessions with transacted and
// acknowledged delivery semantics, producers with broker-granted send
// credit, and consumers with synchronous receive or listener-driven
// asynchronous dispatch.
//
// # Usage
//
//	cfg := openmq.DefaultConfig()
//	cfg.Host = "localhost"
//	cfg.Port = 7676
//
//	conn, err := openmq.Connect(cfg, openmq.WithCredentials("guest", "guest"))
//	if err != nil { ... }
//	defer conn.Close()
//
//	sess, err := conn.CreateSession(false, openmq.AutoAcknowledge, openmq.SyncReceive)
//	dest, err := sess.CreateDestination("orders", openmq.Queue)
//	prod, err := sess.CreateProducerFor(dest)
//
//	msg := openmq.NewTextMessage()
//	msg.SetText("hello")
//	err = prod.Send(msg)
//
// Foreign-language bindings go through pkg/openmq/capi, which exposes the
// same operations over opaque 32-bit handles.
package openmq
