package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chris-alexander-pop/openmq-client/pkg/errors"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

var (
	sslMu    sync.Mutex
	sslReady bool
	sslRoots *x509.CertPool
)

var (
	errSSLNotInit     = errors.NewStatus("MQ_SSL_NOT_INITIALIZED", int32(status.SSLNotInit), "InitializeSSL has not been called", nil)
	errSSLAlreadyInit = errors.NewStatus("MQ_SSL_ALREADY_INITIALIZED", int32(status.SSLAlreadyInit), "InitializeSSL already called", nil)
	errSSLInit        = errors.NewStatus("MQ_SSL_INIT_ERROR", int32(status.SSLInitError), "ssl initialization failed", nil)
	errSSLSocket      = errors.NewStatus("MQ_SSL_SOCKET_INIT_ERROR", int32(status.SSLSocketInitError), "tls handshake failed", nil)
)

// InitializeSSL prepares the trust store used by DialTLS. certDir may hold
// PEM certificate files to trust; an empty path uses the system pool. It
// must be called once, before the first TLS connection.
func InitializeSSL(certDir string) error {
	sslMu.Lock()
	defer sslMu.Unlock()
	if sslReady {
		return errSSLAlreadyInit
	}

	if certDir == "" {
		pool, err := x509.SystemCertPool()
		if err != nil {
			return errors.NewStatus(errSSLInit.Code, errSSLInit.Status, errSSLInit.Message, err)
		}
		sslRoots = pool
		sslReady = true
		return nil
	}

	pool := x509.NewCertPool()
	entries, err := os.ReadDir(certDir)
	if err != nil {
		return errors.NewStatus(errSSLInit.Code, errSSLInit.Status, errSSLInit.Message, err)
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		pem, err := os.ReadFile(filepath.Join(certDir, e.Name()))
		if err != nil {
			continue
		}
		if pool.AppendCertsFromPEM(pem) {
			loaded++
		}
	}
	if loaded == 0 {
		return errors.NewStatus(errSSLInit.Code, errSSLInit.Status, "no certificates loaded", nil)
	}
	sslRoots = pool
	sslReady = true
	return nil
}

// DialTLS opens a TLS transport to host:port. When hostTrusted is set,
// certificate verification is skipped (the broker host is trusted out of
// band).
func DialTLS(host string, port int, timeout time.Duration, hostTrusted bool) (Transport, error) {
	sslMu.Lock()
	ready, roots := sslReady, sslRoots
	sslMu.Unlock()
	if !ready {
		return nil, errSSLNotInit
	}

	tlsCfg := &tls.Config{
		ServerName:         host,
		RootCAs:            roots,
		InsecureSkipVerify: hostTrusted,
	}
	dialer := &net.Dialer{Timeout: timeout}
	c, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), tlsCfg)
	if err != nil {
		return nil, errors.NewStatus(errSSLSocket.Code, errSSLSocket.Status, errSSLSocket.Message, err)
	}
	return newConn(c), nil
}

// resetSSLForTest clears the global trust store between tests.
func resetSSLForTest() {
	sslMu.Lock()
	defer sslMu.Unlock()
	sslReady = false
	sslRoots = nil
}
