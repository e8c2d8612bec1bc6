//go:build !windows

package ipc

import (
	"errors"
	"net"
)

// connectWindows is never reached off Windows; Connect dispatches on GOOS.
func (c *IPCClient) connectWindows() (net.Conn, error) {
	return nil, errors.New("named pipes unavailable on this platform")
}
