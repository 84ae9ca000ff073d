package capi

import (
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/transport"
)

// InitializeSSL prepares the trust store used by SSL connections. Call it
// once, before creating the first SSL connection. certDBPath may name a
// directory of PEM certificates; an empty path trusts the system roots.
func InitializeSSL(certDBPath string) Status {
	return statusOf(transport.InitializeSSL(certDBPath))
}
