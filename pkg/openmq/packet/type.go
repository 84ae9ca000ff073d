package packet

// Type identifies the kind of a packet on the wire.
//
// The first 8 values are reserved for JMS message types. After that, even
// values are requests and odd values are replies; holes in the sequence are
// requests that have no reply.
type Type uint16

const (
	TypeInvalid Type = 0

	TypeTextMessage   Type = 1
	TypeBytesMessage  Type = 2
	TypeMapMessage    Type = 3
	TypeStreamMessage Type = 4
	TypeObjectMessage Type = 5
	TypeMessage       Type = 6

	TypeSendReply Type = 9

	TypeHello                    Type = 10
	TypeHelloReply               Type = 11
	TypeAuthenticate             Type = 12
	TypeAuthenticateReply        Type = 13
	TypeAddConsumer              Type = 14
	TypeAddConsumerReply         Type = 15
	TypeDeleteConsumer           Type = 16
	TypeDeleteConsumerReply      Type = 17
	TypeAddProducer              Type = 18
	TypeAddProducerReply         Type = 19
	TypeStart                    Type = 20
	TypeStop                     Type = 22
	TypeStopReply                Type = 23
	TypeAcknowledge              Type = 24
	TypeAcknowledgeReply         Type = 25
	TypeBrowse                   Type = 26
	TypeBrowseReply              Type = 27
	TypeGoodbye                  Type = 28
	TypeGoodbyeReply             Type = 29
	TypeError                    Type = 30
	TypeRedeliver                Type = 32
	TypeCreateDestination        Type = 34
	TypeCreateDestinationReply   Type = 35
	TypeDestroyDestination       Type = 36
	TypeDestroyDestinationReply  Type = 37
	TypeAuthenticateRequest      Type = 38
	TypeVerifyDestination        Type = 40
	TypeVerifyDestinationReply   Type = 41
	TypeDeliver                  Type = 42
	TypeDeliverReply             Type = 43
	TypeStartTransaction         Type = 44
	TypeStartTransactionReply    Type = 45
	TypeCommitTransaction        Type = 46
	TypeCommitTransactionReply   Type = 47
	TypeRollbackTransaction      Type = 48
	TypeRollbackTransactionReply Type = 49
	TypeSetClientID              Type = 50
	TypeSetClientIDReply         Type = 51
	TypeResumeFlow               Type = 52
	TypePing                     Type = 54
	TypePingReply                Type = 55
	TypePrepareTransaction       Type = 56
	TypePrepareTransactionReply  Type = 57
	TypeEndTransaction           Type = 58
	TypeEndTransactionReply      Type = 59
	TypeRecoverTransaction       Type = 60
	TypeRecoverTransactionReply  Type = 61
	TypeGenerateUID              Type = 62
	TypeGenerateUIDReply         Type = 63
	TypeFlowPaused               Type = 64
	TypeDeleteProducer           Type = 66
	TypeDeleteProducerReply      Type = 67
	TypeCreateSession            Type = 68
	TypeCreateSessionReply       Type = 69
	TypeDestroySession           Type = 70
	TypeDestroySessionReply      Type = 71
	TypeGetInfo                  Type = 72
	TypeGetInfoReply             Type = 73
	TypeDebug                    Type = 74

	TypeLast Type = 75
)

// ProtocolVersion is the broker protocol revision this client speaks.
const ProtocolVersion uint32 = 500

var typeNames = map[Type]string{
	TypeTextMessage:              "TEXT_MESSAGE",
	TypeBytesMessage:             "BYTES_MESSAGE",
	TypeMapMessage:               "MAP_MESSAGE",
	TypeStreamMessage:            "STREAM_MESSAGE",
	TypeObjectMessage:            "OBJECT_MESSAGE",
	TypeMessage:                  "MESSAGE",
	TypeSendReply:                "SEND_REPLY",
	TypeHello:                    "HELLO",
	TypeHelloReply:               "HELLO_REPLY",
	TypeAuthenticate:             "AUTHENTICATE",
	TypeAuthenticateReply:        "AUTHENTICATE_REPLY",
	TypeAddConsumer:              "ADD_CONSUMER",
	TypeAddConsumerReply:         "ADD_CONSUMER_REPLY",
	TypeDeleteConsumer:           "DELETE_CONSUMER",
	TypeDeleteConsumerReply:      "DELETE_CONSUMER_REPLY",
	TypeAddProducer:              "ADD_PRODUCER",
	TypeAddProducerReply:         "ADD_PRODUCER_REPLY",
	TypeStart:                    "START",
	TypeStop:                     "STOP",
	TypeStopReply:                "STOP_REPLY",
	TypeAcknowledge:              "ACKNOWLEDGE",
	TypeAcknowledgeReply:         "ACKNOWLEDGE_REPLY",
	TypeBrowse:                   "BROWSE",
	TypeBrowseReply:              "BROWSE_REPLY",
	TypeGoodbye:                  "GOODBYE",
	TypeGoodbyeReply:             "GOODBYE_REPLY",
	TypeError:                    "ERROR",
	TypeRedeliver:                "REDELIVER",
	TypeCreateDestination:        "CREATE_DESTINATION",
	TypeCreateDestinationReply:   "CREATE_DESTINATION_REPLY",
	TypeDestroyDestination:       "DESTROY_DESTINATION",
	TypeDestroyDestinationReply:  "DESTROY_DESTINATION_REPLY",
	TypeAuthenticateRequest:      "AUTHENTICATE_REQUEST",
	TypeVerifyDestination:        "VERIFY_DESTINATION",
	TypeVerifyDestinationReply:   "VERIFY_DESTINATION_REPLY",
	TypeDeliver:                  "DELIVER",
	TypeDeliverReply:             "DELIVER_REPLY",
	TypeStartTransaction:         "START_TRANSACTION",
	TypeStartTransactionReply:    "START_TRANSACTION_REPLY",
	TypeCommitTransaction:        "COMMIT_TRANSACTION",
	TypeCommitTransactionReply:   "COMMIT_TRANSACTION_REPLY",
	TypeRollbackTransaction:      "ROLLBACK_TRANSACTION",
	TypeRollbackTransactionReply: "ROLLBACK_TRANSACTION_REPLY",
	TypeSetClientID:              "SET_CLIENTID",
	TypeSetClientIDReply:         "SET_CLIENTID_REPLY",
	TypeResumeFlow:               "RESUME_FLOW",
	TypePing:                     "PING",
	TypePingReply:                "PING_REPLY",
	TypePrepareTransaction:       "PREPARE_TRANSACTION",
	TypePrepareTransactionReply:  "PREPARE_TRANSACTION_REPLY",
	TypeEndTransaction:           "END_TRANSACTION",
	TypeEndTransactionReply:      "END_TRANSACTION_REPLY",
	TypeRecoverTransaction:       "RECOVER_TRANSACTION",
	TypeRecoverTransactionReply:  "RECOVER_TRANSACTION_REPLY",
	TypeGenerateUID:              "GENERATE_UID",
	TypeGenerateUIDReply:         "GENERATE_UID_REPLY",
	TypeFlowPaused:               "FLOW_PAUSED",
	TypeDeleteProducer:           "DELETE_PRODUCER",
	TypeDeleteProducerReply:      "DELETE_PRODUCER_REPLY",
	TypeCreateSession:            "CREATE_SESSION",
	TypeCreateSessionReply:       "CREATE_SESSION_REPLY",
	TypeDestroySession:           "DESTROY_SESSION",
	TypeDestroySessionReply:      "DESTROY_SESSION_REPLY",
	TypeGetInfo:                  "GET_INFO",
	TypeGetInfoReply:             "GET_INFO_REPLY",
	TypeDebug:                    "DEBUG",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "INVALID"
}

// IsMessage reports whether t is one of the JMS message types that carry a
// user payload, as opposed to a control packet.
func (t Type) IsMessage() bool {
	return t >= TypeTextMessage && t <= TypeMessage
}

// IsReply reports whether t is a broker reply to a client request.
func (t Type) IsReply() bool {
	return t > TypeMessage && t < TypeLast && t%2 == 1
}
