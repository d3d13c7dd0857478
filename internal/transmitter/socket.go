package transmitter

import "net"

// SocketFactory creates the outbound datagram socket.
// This abstraction enables unit testing without real network connections.
type SocketFactory interface {
	ListenPacket(network, address string) (net.PacketConn, error)
}

// UDPSocketFactory implements SocketFactory using net.ListenPacket.
type UDPSocketFactory struct{}

// ListenPacket opens a UDP socket on an ephemeral local port.
func (UDPSocketFactory) ListenPacket(network, address string) (net.PacketConn, error) {
	return net.ListenPacket(network, address)
}

// Resolver turns "host:port" into a UDP address.
type Resolver func(network, address string) (*net.UDPAddr, error)
