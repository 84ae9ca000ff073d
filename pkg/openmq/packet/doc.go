// Package packet defines the typed packet model exchanged with an OpenMQ
// broker: packet-type constants, header flags, the system message id, and the
// Packet container itself.
//
// The byte-level encoding lives in pkg/openmq/transport; everything above the
// transport operates on *packet.Packet values only.
package packet
