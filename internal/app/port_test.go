package app

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// freePort asks the kernel for an unused port
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
