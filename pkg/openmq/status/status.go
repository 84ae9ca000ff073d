// Package status defines the numeric error space of the client. The values
// cross the binding boundary and are stable: existing callers compiled
// against the original C surface compare against these exact numbers.
package status

// Status is a 32-bit result code. Zero is success; everything else is an
// offset from Base in a dense per-subsystem block.
type Status int32

const (
	OK   Status = 0
	Base Status = 1000
)

// General.
const (
	InternalError Status = Base + 1

	NullPtrArg         Status = Base + 100
	WrongArgBufferSize Status = Base + 101
	OutOfMemory        Status = Base + 102
	FileOutputError    Status = Base + 103
	NotFound           Status = Base + 104
	BadVectorIndex     Status = Base + 105
	VectorTooBig       Status = Base + 106
	UnexpectedNull     Status = Base + 107
	InvalidIterator    Status = Base + 108
	StringNotNumber    Status = Base + 109
	NumberNotUint16    Status = Base + 110
	ObjectNotCloneable Status = Base + 112
	HashValueExists    Status = Base + 113
	HashTableAllocFail Status = Base + 114
	IncompatibleLib    Status = Base + 115
	ConcurrentAccess   Status = Base + 116
	ConcurrentDeadlock Status = Base + 117
	ConcurrentNotOwner Status = Base + 118
)

// Streams and serialization.
const (
	UninitializedStream Status = Base + 300
	EndOfStream         Status = Base + 301
	InputStreamError    Status = Base + 302
)

// Properties.
const (
	PropertyNull              Status = Base + 500
	PropertyWrongValueType    Status = Base + 501
	InvalidTypeConversion     Status = Base + 502
	NullString                Status = Base + 503
	TypeConversionOutOfBounds Status = Base + 504
	PropertyFileError         Status = Base + 505
	FileNotFound              Status = Base + 506
	BasicTypeSizeMismatch     Status = Base + 507
)

// TCP.
const (
	TCPInvalidPort      Status = Base + 600
	TCPConnectionClosed Status = Base + 601
	TCPAlreadyConnected Status = Base + 602
)

// Packets.
const (
	InvalidPacket            Status = Base + 800
	InvalidPacketField       Status = Base + 801
	PacketOutputError        Status = Base + 802
	UnrecognizedPacketType   Status = Base + 803
	UnsupportedMessageType   Status = Base + 804
	BadPacketMagicNumber     Status = Base + 805
	UnsupportedPacketVersion Status = Base + 806
)

// Connection handshake.
const (
	CouldNotConnectToBroker   Status = Base + 900
	BrokerConnectionClosed    Status = Base + 901
	UnexpectedAcknowledgement Status = Base + 902
	AckStatusNotOK            Status = Base + 903
	CouldNotCreateThread      Status = Base + 904
	InvalidAuthenticateReq    Status = Base + 905
	AdminKeyAuthMismatch      Status = Base + 906
	NoAuthenticationHandler   Status = Base + 907
	UnsupportedAuthType       Status = Base + 908
	InvalidClientID           Status = Base + 909
	ClientIDInUse             Status = Base + 910
)

// Consumer ids.
const (
	ReusedConsumerID  Status = Base + 1000
	InvalidConsumerID Status = Base + 1001
)

// Sockets and SSL.
const (
	SocketError          Status = Base + 1100
	NegativeAmount       Status = Base + 1101
	PollError            Status = Base + 1102
	TimeoutExpired       Status = Base + 1103
	InvalidPort          Status = Base + 1104
	SocketConnectFailed  Status = Base + 1105
	SocketReadFailed     Status = Base + 1106
	SocketWriteFailed    Status = Base + 1107
	SocketShutdownFailed Status = Base + 1108
	SocketCloseFailed    Status = Base + 1109
	SSLInitError         Status = Base + 1110
	SSLSocketInitError   Status = Base + 1111
	SSLCertError         Status = Base + 1112
	SSLError             Status = Base + 1113
	SSLAlreadyInit       Status = Base + 1114
	SSLNotInit           Status = Base + 1115
)

// Broker statuses, mapped from the HTTP-like codes in reply packets.
const (
	BrokerBadRequest         Status = Base + 1300
	BrokerUnauthorized       Status = Base + 1301
	BrokerForbidden          Status = Base + 1302
	BrokerNotFound           Status = Base + 1303
	BrokerNotAllowed         Status = Base + 1304
	BrokerTimeout            Status = Base + 1305
	BrokerConflict           Status = Base + 1306
	BrokerGone               Status = Base + 1307
	BrokerPreconditionFailed Status = Base + 1308
	BrokerInvalidLogin       Status = Base + 1309
	BrokerError              Status = Base + 1310
	BrokerNotImplemented     Status = Base + 1311
	BrokerUnavailable        Status = Base + 1312
	BrokerBadVersion         Status = Base + 1313
	BrokerResourceFull       Status = Base + 1314
	BrokerEntityTooLarge     Status = Base + 1315
)

// Protocol handler.
const (
	ProtocolHandlerGoodbyeFailed     Status = Base + 1400
	ProtocolHandlerStartFailed       Status = Base + 1401
	ProtocolHandlerStopFailed        Status = Base + 1402
	ProtocolHandlerAuthFailed        Status = Base + 1403
	ProtocolHandlerUnexpectedReply   Status = Base + 1404
	ProtocolHandlerWriteError        Status = Base + 1405
	ProtocolHandlerReadError         Status = Base + 1406
	ProtocolHandlerError             Status = Base + 1407
	ProtocolHandlerSetClientIDFailed Status = Base + 1408
	ProtocolHandlerDeleteDestFailed  Status = Base + 1409
	ProtocolHandlerHelloFailed       Status = Base + 1410
	ProtocolHandlerResumeFlowFailed  Status = Base + 1411
)

const (
	ReadChannelDispatchError Status = Base + 1500
	ReadQTableError          Status = Base + 1600
	UnsupportedArgumentValue Status = Base + 1700
)

// Sessions.
const (
	SessionClosed                 Status = Base + 1800
	ConsumerNotInSession          Status = Base + 1801
	ProducerNotInSession          Status = Base + 1802
	QueueConsumerCannotBeDurable  Status = Base + 1803
	CannotUnsubscribeActive       Status = Base + 1804
	ReceiveQueueClosed            Status = Base + 1805
	ReceiveQueueError             Status = Base + 1806
	NoConnection                  Status = Base + 1807
	ConnectionClosed              Status = Base + 1808
	InvalidAcknowledgeMode        Status = Base + 1809
	InvalidDestinationType        Status = Base + 1810
	InvalidReceiveMode            Status = Base + 1811
	NotSyncReceiveMode            Status = Base + 1812
	NotAsyncReceiveMode           Status = Base + 1813
	TransactedSession             Status = Base + 1814
	NotTransactedSession          Status = Base + 1815
	SessionNotClientAckMode       Status = Base + 1816
	TransactionIDInUse            Status = Base + 1817
	InvalidTransactionID          Status = Base + 1818
	ThreadOutsideXATransaction    Status = Base + 1819
	XASessionNoTransaction        Status = Base + 1820
	XASessionInProgress           Status = Base + 1821
	SharedSubscriptionNotTopic    Status = Base + 1822
)

// Destinations.
const (
	MessageNoDestination Status = Base + 1900
	DestinationNoClass   Status = Base + 1901
	DestinationNoName    Status = Base + 1902
	NoReplyToDestination Status = Base + 1903
)

// Producers.
const (
	ProducerNoDestination  Status = Base + 2000
	ProducerHasDestination Status = Base + 2001
	InvalidDeliveryMode    Status = Base + 2002
	InvalidPriority        Status = Base + 2003
	ProducerClosed         Status = Base + 2004
	SendNotFound           Status = Base + 2005
	SendTooLarge           Status = Base + 2006
	SendResourceFull       Status = Base + 2007
)

// Consumers.
const (
	ConsumerNoDurableName           Status = Base + 2100
	ConsumerNotInitialized          Status = Base + 2101
	ConsumerException               Status = Base + 2102
	ConsumerNoSession               Status = Base + 2103
	MessageNotInSession             Status = Base + 2104
	NoMessage                       Status = Base + 2105
	ConsumerClosed                  Status = Base + 2106
	InvalidMessageSelector          Status = Base + 2107
	ConsumerNotFound                Status = Base + 2108
	DestConsumerLimitExceeded       Status = Base + 2109
	ConsumerDestinationNotFound     Status = Base + 2110
	NoLocalDurableConsumerNoClient  Status = Base + 2111
	ConsumerNoSubscriptionName      Status = Base + 2112
)

// Connections.
const (
	ConnectionStartError          Status = Base + 2200
	ConnectionCreateSessionError  Status = Base + 2201
	ConnectionOpenError           Status = Base + 2202
	ConnectionUnsupportedTranspt  Status = Base + 2203
)

// Handles.
const (
	HandledObjectInvalidHandle Status = Base + 2300
	HandledObjectInUse         Status = Base + 2301
	HandledObjectNoMoreHandles Status = Base + 2302
)

const ReferencedFreedObject Status = Base + 2400

const (
	DestinationNotTemporary      Status = Base + 2500
	TempDestinationNotInConnection Status = Base + 2501
)

const CallbackRuntimeError Status = Base + 2600

// Binding-layer statuses.
const (
	StatusInvalidHandle       Status = Base + 5000
	NoMessageProperties       Status = Base + 5001
	StatusNullLogger          Status = Base + 5002
	StatusConnectionNotClosed Status = Base + 5003
	NotXAConnection           Status = Base + 5004
	IllegalCloseXAConnection  Status = Base + 5005
)

// FromBrokerStatus maps the HTTP-like status carried on reply packets to the
// client error space. 200 maps to OK.
func FromBrokerStatus(code int32) Status {
	switch code {
	case 200:
		return OK
	case 400:
		return BrokerBadRequest
	case 401:
		return BrokerUnauthorized
	case 403:
		return BrokerForbidden
	case 404:
		return BrokerNotFound
	case 405:
		return BrokerNotAllowed
	case 408:
		return BrokerTimeout
	case 409:
		return BrokerConflict
	case 410:
		return BrokerGone
	case 412:
		return BrokerPreconditionFailed
	case 413:
		return BrokerEntityTooLarge
	case 500:
		return BrokerError
	case 501:
		return BrokerNotImplemented
	case 503:
		return BrokerUnavailable
	case 505:
		return BrokerBadVersion
	case 507:
		return BrokerResourceFull
	default:
		return BrokerError
	}
}
