package dockerx

import (
	"fmt"
	"math/rand/v2"
	"net"
)

const (
	hostPortMin = 8000
	hostPortMax = 9999

	// portAllocAttempts bounds the random probe; with a 2000-port range the
	// allocator only exhausts this when the range is nearly full.
	portAllocAttempts = 50
)

// AllocateHostPort draws a random port from [8000, 9999] and confirms it is
// not already bound before returning it. The check is a bind-and-release on
// all interfaces, the same binding the container will request.
func AllocateHostPort() (int, error) {
	for i := 0; i < portAllocAttempts; i++ {
		port := hostPortMin + rand.IntN(hostPortMax-hostPortMin+1)
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			continue
		}
		listener.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free host port in [%d, %d] after %d attempts", hostPortMin, hostPortMax, portAllocAttempts)
}
