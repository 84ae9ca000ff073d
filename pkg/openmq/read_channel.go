package openmq

import (
	"github.com/chris-alexander-pop/openmq-client/pkg/logger"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/packet"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

// readChannel is the connection's background reader. It demultiplexes every
// inbound packet: data messages to the owning consumer's queue, resume-flow
// to the producer's flow, replies to the waiting protocol request. A
// transport failure closes the connection and wakes everyone.
func (c *Connection) readChannel() error {
	for {
		p, err := c.t.ReadPacket()
		if err != nil {
			if c.IsClosed() {
				return nil
			}
			c.onException(err)
			return nil
		}
		c.dispatch(p)
	}
}

func (c *Connection) dispatch(p *packet.Packet) {
	switch {
	case p.PType.IsMessage():
		c.dispatchMessage(p)

	case p.PType == packet.TypeResumeFlow:
		c.dispatchResumeFlow(p)

	case p.PType == packet.TypeFlowPaused:
		c.flowPaused.Store(true)

	case p.PType == packet.TypePingReply, p.PType == packet.TypeDebug:
		// Nothing to do.

	case p.PType == packet.TypeError:
		c.onException(brokerError(status.FromBrokerStatus(p.Status)))

	case p.PType.IsReply():
		if !c.proto.handleReply(p) {
			logger.L().Debug("reply with no waiting request",
				"type", p.PType.String(), "correlation_id", p.CorrelationID)
		}

	default:
		logger.L().Warn("unrecognized packet type on read channel",
			"type", uint16(p.PType))
	}
}

func (c *Connection) dispatchMessage(p *packet.Packet) {
	consumer, ok := c.lookupConsumer(p.ConsumerID)
	if !ok {
		logger.L().Debug("message for unknown consumer dropped",
			"consumer_id", p.ConsumerID, "sys_id", p.SysID.String())
		return
	}
	consumer.enqueuePacket(p)
}

func (c *Connection) dispatchResumeFlow(p *packet.Packet) {
	f, ok := c.lookupFlow(p.ProducerID)
	if !ok {
		logger.L().Debug("resume-flow for unknown producer", "producer_id", p.ProducerID)
		return
	}
	chunkBytes := int64(-1)
	chunkSize := int32(-1)
	if v, ok := p.GetProperty("JMQBytes"); ok {
		if b, ok := toInt64(v); ok {
			chunkBytes = b
		}
	}
	if v, ok := p.GetProperty("JMQSize"); ok {
		if s, ok := toInt64(v); ok {
			chunkSize = int32(s)
		}
	}
	f.resumeFlow(chunkBytes, chunkSize)
}
