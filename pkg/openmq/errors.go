package openmq

import (
	"github.com/chris-alexander-pop/openmq-client/pkg/errors"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

// Sentinel errors for the client error space. Each carries the stable
// numeric status that crosses the binding; compare with errors.Is.
var (
	ErrInternal         = errors.NewStatus("MQ_INTERNAL_ERROR", int32(status.InternalError), "internal error", nil)
	ErrNullArg          = errors.NewStatus("MQ_NULL_PTR_ARG", int32(status.NullPtrArg), "required argument is nil", nil)
	ErrConcurrentAccess = errors.NewStatus("MQ_CONCURRENT_ACCESS", int32(status.ConcurrentAccess), "another goroutine is executing in the session", nil)
	ErrNotOwner         = errors.NewStatus("MQ_CONCURRENT_NOT_OWNER", int32(status.ConcurrentNotOwner), "caller does not hold the session mutex", nil)
	ErrTimeoutExpired   = errors.NewStatus("MQ_TIMEOUT_EXPIRED", int32(status.TimeoutExpired), "timed out", nil)

	ErrPropertyWrongType = errors.NewStatus("MQ_PROPERTY_WRONG_VALUE_TYPE", int32(status.PropertyWrongValueType), "property has a different value type", nil)
	ErrPropertyNotFound  = errors.NewStatus("MQ_NOT_FOUND", int32(status.NotFound), "property not found", nil)
	ErrInvalidIterator   = errors.NewStatus("MQ_INVALID_ITERATOR", int32(status.InvalidIterator), "key iteration not started or exhausted", nil)

	ErrCouldNotConnect     = errors.NewStatus("MQ_COULD_NOT_CONNECT_TO_BROKER", int32(status.CouldNotConnectToBroker), "could not connect to broker", nil)
	ErrConnectionClosed    = errors.NewStatus("MQ_BROKER_CONNECTION_CLOSED", int32(status.BrokerConnectionClosed), "broker connection closed", nil)
	ErrSocketReadFailed    = errors.NewStatus("MQ_SOCKET_READ_FAILED", int32(status.SocketReadFailed), "transport read failed", nil)
	ErrSocketWriteFailed   = errors.NewStatus("MQ_SOCKET_WRITE_FAILED", int32(status.SocketWriteFailed), "transport write failed", nil)
	ErrUnexpectedReply     = errors.NewStatus("MQ_PROTOCOL_HANDLER_UNEXPECTED_REPLY", int32(status.ProtocolHandlerUnexpectedReply), "unexpected reply packet type", nil)
	ErrInvalidPacket       = errors.NewStatus("MQ_INVALID_PACKET", int32(status.InvalidPacket), "malformed packet", nil)
	ErrUnexpectedAck       = errors.NewStatus("MQ_UNEXPECTED_ACKNOWLEDGEMENT", int32(status.UnexpectedAcknowledgement), "unexpected acknowledgement", nil)
	ErrUnsupportedTranspt  = errors.NewStatus("MQ_CONNECTION_UNSUPPORTED_TRANSPORT", int32(status.ConnectionUnsupportedTranspt), "unsupported transport type", nil)
	ErrInvalidClientID     = errors.NewStatus("MQ_INVALID_CLIENTID", int32(status.InvalidClientID), "invalid client id", nil)
	ErrClientIDInUse       = errors.NewStatus("MQ_CLIENTID_IN_USE", int32(status.ClientIDInUse), "client id already in use", nil)
	ErrSSLNotInitialized   = errors.NewStatus("MQ_SSL_NOT_INITIALIZED", int32(status.SSLNotInit), "ssl has not been initialized", nil)
	ErrSSLAlreadyInit      = errors.NewStatus("MQ_SSL_ALREADY_INITIALIZED", int32(status.SSLAlreadyInit), "ssl already initialized", nil)

	ErrSessionClosed       = errors.NewStatus("MQ_SESSION_CLOSED", int32(status.SessionClosed), "session closed", nil)
	ErrInvalidAckMode      = errors.NewStatus("MQ_INVALID_ACKNOWLEDGE_MODE", int32(status.InvalidAcknowledgeMode), "invalid acknowledge mode", nil)
	ErrInvalidReceiveMode  = errors.NewStatus("MQ_INVALID_RECEIVE_MODE", int32(status.InvalidReceiveMode), "invalid receive mode", nil)
	ErrNotSyncReceiveMode  = errors.NewStatus("MQ_NOT_SYNC_RECEIVE_MODE", int32(status.NotSyncReceiveMode), "session is not in sync receive mode", nil)
	ErrNotAsyncReceiveMode = errors.NewStatus("MQ_NOT_ASYNC_RECEIVE_MODE", int32(status.NotAsyncReceiveMode), "session is not in async receive mode", nil)
	ErrTransactedSession   = errors.NewStatus("MQ_TRANSACTED_SESSION", int32(status.TransactedSession), "operation not valid on a transacted session", nil)
	ErrNotTransacted       = errors.NewStatus("MQ_NOT_TRANSACTED_SESSION", int32(status.NotTransactedSession), "session is not transacted", nil)
	ErrNotClientAckMode    = errors.NewStatus("MQ_SESSION_NOT_CLIENT_ACK_MODE", int32(status.SessionNotClientAckMode), "session is not in client acknowledge mode", nil)
	ErrConsumerNotInSession = errors.NewStatus("MQ_CONSUMER_NOT_IN_SESSION", int32(status.ConsumerNotInSession), "consumer does not belong to this session", nil)
	ErrProducerNotInSession = errors.NewStatus("MQ_PRODUCER_NOT_IN_SESSION", int32(status.ProducerNotInSession), "producer does not belong to this session", nil)
	ErrMessageNotInSession  = errors.NewStatus("MQ_MESSAGE_NOT_IN_SESSION", int32(status.MessageNotInSession), "message was not delivered by this session", nil)
	ErrInvalidTransactionID = errors.NewStatus("MQ_INVALID_TRANSACTION_ID", int32(status.InvalidTransactionID), "no transaction in progress", nil)
	ErrReceiveQueueClosed   = errors.NewStatus("MQ_RECEIVE_QUEUE_CLOSED", int32(status.ReceiveQueueClosed), "receive queue closed", nil)

	ErrDestinationNoName      = errors.NewStatus("MQ_DESTINATION_NO_NAME", int32(status.DestinationNoName), "destination has no name", nil)
	ErrDestinationNoClass     = errors.NewStatus("MQ_DESTINATION_NO_CLASS", int32(status.DestinationNoClass), "unrecognized destination class", nil)
	ErrInvalidDestinationType = errors.NewStatus("MQ_INVALID_DESTINATION_TYPE", int32(status.InvalidDestinationType), "invalid destination type", nil)
	ErrNotTemporary           = errors.NewStatus("MQ_DESTINATION_NOT_TEMPORARY", int32(status.DestinationNotTemporary), "destination is not temporary", nil)
	ErrTempDestNotInConnection = errors.NewStatus("MQ_TEMPORARY_DESTINATION_NOT_IN_CONNECTION", int32(status.TempDestinationNotInConnection), "temporary destination belongs to another connection", nil)
	ErrNoReplyTo               = errors.NewStatus("MQ_NO_REPLY_TO_DESTINATION", int32(status.NoReplyToDestination), "message carries no reply-to destination", nil)

	ErrProducerNoDestination  = errors.NewStatus("MQ_PRODUCER_NO_DESTINATION", int32(status.ProducerNoDestination), "producer was created without a destination", nil)
	ErrProducerHasDestination = errors.NewStatus("MQ_PRODUCER_HAS_DESTINATION", int32(status.ProducerHasDestination), "producer is bound to a destination", nil)
	ErrInvalidDeliveryMode    = errors.NewStatus("MQ_INVALID_DELIVERY_MODE", int32(status.InvalidDeliveryMode), "invalid delivery mode", nil)
	ErrInvalidPriority        = errors.NewStatus("MQ_INVALID_PRIORITY", int32(status.InvalidPriority), "priority outside [0,9]", nil)
	ErrProducerClosed         = errors.NewStatus("MQ_PRODUCER_CLOSED", int32(status.ProducerClosed), "producer closed", nil)

	ErrNoDurableName        = errors.NewStatus("MQ_CONSUMER_NO_DURABLE_NAME", int32(status.ConsumerNoDurableName), "durable consumer requires a subscription name", nil)
	ErrNoSubscriptionName   = errors.NewStatus("MQ_CONSUMER_NO_SUBSCRIPTION_NAME", int32(status.ConsumerNoSubscriptionName), "shared consumer requires a subscription name", nil)
	ErrConsumerNotInit      = errors.NewStatus("MQ_CONSUMER_NOT_INITIALIZED", int32(status.ConsumerNotInitialized), "consumer failed to initialize", nil)
	ErrConsumerException    = errors.NewStatus("MQ_CONSUMER_EXCEPTION", int32(status.ConsumerException), "receive failed", nil)
	ErrNoMessage            = errors.NewStatus("MQ_NO_MESSAGE", int32(status.NoMessage), "no message available", nil)
	ErrConsumerClosed       = errors.NewStatus("MQ_CONSUMER_CLOSED", int32(status.ConsumerClosed), "consumer closed", nil)
	ErrConsumerNotFound     = errors.NewStatus("MQ_CONSUMER_NOT_FOUND", int32(status.ConsumerNotFound), "no consumer registered for id", nil)
	ErrNoLocalDurableNoClientID = errors.NewStatus("MQ_NOLOCAL_DURABLE_CONSUMER_NO_CLIENTID", int32(status.NoLocalDurableConsumerNoClient), "no-local durable consumer requires a connection client id", nil)
	ErrUnsupportedArgument      = errors.NewStatus("MQ_UNSUPPORTED_ARGUMENT_VALUE", int32(status.UnsupportedArgumentValue), "unsupported argument value", nil)

	ErrConnectionClosedState = errors.NewStatus("MQ_CONNECTION_CLOSED", int32(status.ConnectionClosed), "connection closed", nil)
	ErrCallbackRuntime       = errors.NewStatus("MQ_CALLBACK_RUNTIME_ERROR", int32(status.CallbackRuntimeError), "message listener failed", nil)
)

// brokerError wraps a non-OK broker reply status into the client error
// space, preserving the numeric code.
func brokerError(st status.Status) error {
	if st == status.OK {
		return nil
	}
	return errors.NewStatus("MQ_BROKER_STATUS", int32(st), "broker rejected request", nil)
}
