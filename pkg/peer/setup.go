package peer

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultPort is the port a hosting peer listens on unless told otherwise.
const DefaultPort = 4567

// Setup holds what a session needs before any connection is made: the
// port to listen on, the I/O timeout and information about the local host.
// A Setup can be shared by the sessions of consecutive games.
type Setup struct {
	Port int

	// Timeout bounds every read and write on a connection. Zero means a
	// hung peer is waited on for as long as the context allows.
	Timeout time.Duration

	mu          sync.Mutex
	initialized bool
	hostname    string
	addresses   []string
}

func NewSetup(port int, timeout time.Duration) *Setup {
	return &Setup{Port: port, Timeout: timeout}
}

// EnsureInitialized looks up the local host's name and addresses. Only the
// first successful call does any work.
func (setup *Setup) EnsureInitialized() error {
	setup.mu.Lock()
	defer setup.mu.Unlock()

	if setup.initialized {
		return nil
	}

	hostname, err := os.Hostname()
	if err != nil {
		return errors.Wrap(err, "peer: could not determine local host name")
	}

	addresses, err := net.LookupHost(hostname)
	if err != nil {
		logrus.WithError(err).Debug("Host name lookup failed, using interface addresses")

		addresses, err = interfaceAddresses()
		if err != nil {
			return errors.Wrap(err, "peer: could not obtain local host information")
		}
	}

	setup.hostname = hostname
	setup.addresses = addresses
	setup.initialized = true

	logrus.WithFields(logrus.Fields{
		"host":      hostname,
		"addresses": addresses,
	}).Debug("Network initialized")
	return nil
}

func interfaceAddresses() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	var addresses []string
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			addresses = append(addresses, ipnet.IP.String())
		}
	}

	return addresses, nil
}

// Hostname returns the local host name. It is empty before initialization.
func (setup *Setup) Hostname() string {
	setup.mu.Lock()
	defer setup.mu.Unlock()
	return setup.hostname
}

// Addresses returns the addresses the opponent can connect to.
func (setup *Setup) Addresses() []string {
	setup.mu.Lock()
	defer setup.mu.Unlock()
	return append([]string(nil), setup.addresses...)
}

// deadline returns the deadline for an I/O operation started now under
// the given context deadline, if there is one.
func (setup *Setup) deadline(ctxDeadline time.Time, hasDeadline bool) (time.Time, bool) {
	if setup.Timeout <= 0 {
		return ctxDeadline, hasDeadline
	}

	timeout := time.Now().Add(setup.Timeout)
	if !hasDeadline || timeout.Before(ctxDeadline) {
		return timeout, true
	}
	return ctxDeadline, true
}
