package capi

import (
	"time"

	"github.com/chris-alexander-pop/openmq-client/pkg/openmq"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/handle"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

// Connection property keys understood by CreateConnection.
const (
	BrokerHostProperty       = "MQBrokerHostName"
	BrokerPortProperty       = "MQBrokerHostPort"
	ConnectionTypeProperty   = "MQConnectionType"
	AckTimeoutProperty       = "MQAckTimeoutMillis"
	PingIntervalProperty     = "MQPingIntervalSeconds"
	SSLBrokerIsTrustedProp   = "MQSSLBrokerIsTrusted"
	ConnectRetriesProperty   = "MQConnectRetries"
	DupsOKLimitProperty      = "MQDupsOkLimit"
	PrefetchMaxCountProperty = "MQConsumerPrefetchMaxMsgCount"
)

// ExceptionListenerFunc is invoked once when a connection fails.
type ExceptionListenerFunc func(conn Handle, err Status, callbackData any)

// connectionRef ties the live connection to its handle so callbacks can
// name it.
type connectionRef struct {
	conn *openmq.Connection
	h    Handle
}

// CreateConnection opens an authenticated broker connection configured
// from the given properties bag.
func CreateConnection(props Handle, username, password, clientID string,
	listener ExceptionListenerFunc, callbackData any, out *Handle) Status {

	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle

	cfg := openmq.DefaultConfig()
	if props.IsValid() {
		st := withProperties(props, func(p *openmq.Properties) Status {
			applyConnectionProperties(&cfg, p)
			return OK
		})
		if st != OK {
			return st
		}
	}

	ref := &connectionRef{}
	opts := []openmq.ConnectOption{openmq.WithCredentials(username, password)}
	if clientID != "" {
		opts = append(opts, openmq.WithClientID(clientID))
	}
	if listener != nil {
		opts = append(opts, openmq.WithExceptionListener(func(err error) {
			listener(ref.h, statusOf(err), callbackData)
		}))
	}

	conn, err := openmq.Connect(cfg, opts...)
	if err != nil {
		return statusOf(err)
	}
	ref.conn = conn

	h, st := allocate(ref, handle.KindConnection)
	if st != OK {
		_ = conn.Close()
		return st
	}
	ref.h = h
	*out = h
	return OK
}

func applyConnectionProperties(cfg *openmq.ConnectionConfig, p *openmq.Properties) {
	if v, err := p.GetString(BrokerHostProperty); err == nil {
		cfg.Host = v
	}
	if v, err := p.GetInt32(BrokerPortProperty); err == nil {
		cfg.Port = int(v)
	}
	if v, err := p.GetString(ConnectionTypeProperty); err == nil {
		switch v {
		case "SSL":
			cfg.Transport = "tls"
		case "TCP":
			cfg.Transport = "tcp"
		default:
			cfg.Transport = v
		}
	}
	if v, err := p.GetInt32(AckTimeoutProperty); err == nil {
		cfg.AckTimeout = time.Duration(v) * time.Millisecond
	}
	if v, err := p.GetInt32(PingIntervalProperty); err == nil {
		cfg.PingInterval = time.Duration(v) * time.Second
	}
	if v, err := p.GetBool(SSLBrokerIsTrustedProp); err == nil {
		cfg.BrokerHostTrusted = v
	}
	if v, err := p.GetInt32(ConnectRetriesProperty); err == nil && v >= 0 {
		cfg.ConnectRetries = uint(v)
	}
	if v, err := p.GetInt32(DupsOKLimitProperty); err == nil {
		cfg.DupsOKLimit = int(v)
	}
	if v, err := p.GetInt32(PrefetchMaxCountProperty); err == nil {
		cfg.PrefetchMaxMsgCount = v
	}
}

func withConnection(h Handle, fn func(ref *connectionRef) Status) Status {
	ref, st := acquire[*connectionRef](h, handle.KindConnection)
	if st != OK {
		return st
	}
	defer release(h)
	return fn(ref)
}

// StartConnection begins message delivery.
func StartConnection(h Handle) Status {
	return withConnection(h, func(ref *connectionRef) Status {
		return statusOf(ref.conn.Start())
	})
}

// StopConnection pauses message delivery.
func StopConnection(h Handle) Status {
	return withConnection(h, func(ref *connectionRef) Status {
		return statusOf(ref.conn.Stop())
	})
}

// CloseConnection shuts the connection down; the handle stays valid until
// FreeConnection.
func CloseConnection(h Handle) Status {
	return withConnection(h, func(ref *connectionRef) Status {
		return statusOf(ref.conn.Close())
	})
}

// FreeConnection releases the handle of a closed connection.
func FreeConnection(h Handle) Status {
	st := withConnection(h, func(ref *connectionRef) Status {
		if !ref.conn.IsClosed() {
			return status.StatusConnectionNotClosed
		}
		return OK
	})
	if st != OK {
		return st
	}
	return free(h)
}

// GetMetadata fills a fresh properties bag with the provider metadata.
func GetMetadata(h Handle, out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	return withConnection(h, func(ref *connectionRef) Status {
		md := ref.conn.Metadata()
		p := openmq.NewProperties()
		p.SetString("MQ_NAME_PROPERTY", md.ProviderName)
		p.SetString("MQ_VERSION_PROPERTY", md.ProviderVersion)
		p.SetInt32("MQ_MAJOR_VERSION_PROPERTY", md.ProviderMajorVersion)
		p.SetInt32("MQ_MINOR_VERSION_PROPERTY", md.ProviderMinorVersion)
		ph, st := allocate(p, handle.KindProperties)
		if st != OK {
			return st
		}
		*out = ph
		return OK
	})
}

// CreateSession creates a session on the connection.
func CreateSession(h Handle, transacted bool, ackMode AckMode, receiveMode ReceiveMode, out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle

	mode, st := ackModeOf(ackMode)
	if st != OK && !transacted {
		return st
	}
	rmode, st := receiveModeOf(receiveMode)
	if st != OK {
		return st
	}

	return withConnection(h, func(ref *connectionRef) Status {
		sess, err := ref.conn.CreateSession(transacted, mode, rmode)
		if err != nil {
			return statusOf(err)
		}
		sh, st := allocate(sess, handle.KindSession)
		if st != OK {
			_ = sess.Close()
			return st
		}
		*out = sh
		return OK
	})
}

// BeforeMessageListenerFunc runs before an XA session delivers a message.
type BeforeMessageListenerFunc func(session, consumer, msg Handle, callbackData any) Status

// AfterMessageListenerFunc runs after an XA session delivery completes.
type AfterMessageListenerFunc func(session, consumer, msg Handle, deliveryStatus Status, callbackData any)

// CreateXASession creates a session bracketed by external-coordinator
// hooks.
func CreateXASession(h Handle, receiveMode ReceiveMode,
	before BeforeMessageListenerFunc, after AfterMessageListenerFunc,
	callbackData any, out *Handle) Status {

	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle

	rmode, st := receiveModeOf(receiveMode)
	if st != OK {
		return st
	}

	return withConnection(h, func(ref *connectionRef) Status {
		var sessionHandle Handle

		var beforeFn openmq.BeforeDeliveryFunc
		var afterFn openmq.AfterDeliveryFunc
		if before != nil {
			beforeFn = func(msg *openmq.Message) error {
				mh, st := allocate(msg, messageKindOf(msg))
				if st != OK {
					return statusError(st)
				}
				if rc := before(sessionHandle, InvalidHandle, mh, callbackData); rc != OK {
					return statusError(rc)
				}
				return nil
			}
		}
		if after != nil {
			afterFn = func(msg *openmq.Message, deliveryErr error) {
				after(sessionHandle, InvalidHandle, InvalidHandle, statusOf(deliveryErr), callbackData)
			}
		}

		sess, err := ref.conn.CreateXASession(rmode, beforeFn, afterFn)
		if err != nil {
			return statusOf(err)
		}
		sh, st := allocate(sess, handle.KindSession)
		if st != OK {
			_ = sess.Close()
			return st
		}
		sessionHandle = sh
		*out = sh
		return OK
	})
}
