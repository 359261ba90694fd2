package bus

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/libp2p/go-reuseport"
	"golang.org/x/sys/unix"

	"github.com/cjeanneret/wiper/internal/debug"
)

// UDPPublisher sends every payload as one datagram to a broadcast (or
// unicast) address. There is no acknowledgment and no retransmission.
type UDPPublisher struct {
	conn net.PacketConn
	addr *net.UDPAddr
}

// NewUDPPublisher opens a sending socket for addr (host:port).
func NewUDPPublisher(addr string) (*UDPPublisher, error) {
	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve publish address: %w", err)
	}

	conn, err := reuseport.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("open publish socket: %w", err)
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable broadcast: %w", err)
	}

	debug.Verbose("Bus: publishing to %s", raddr)
	return &UDPPublisher{conn: conn, addr: raddr}, nil
}

// Publish implements Publisher.
func (p *UDPPublisher) Publish(payload []byte) error {
	if err := checkPayload(payload); err != nil {
		return err
	}
	if _, err := p.conn.WriteTo(payload, p.addr); err != nil {
		return fmt.Errorf("send datagram: %w", err)
	}
	return nil
}

// Close releases the socket.
func (p *UDPPublisher) Close() error {
	return p.conn.Close()
}

// UDPSubscriber listens for datagrams and queues them for TryReceive.
// The listening port is shared (SO_REUSEPORT) so several subscribers can
// run on the same host.
type UDPSubscriber struct {
	conn  net.PacketConn
	queue chan []byte
	wg    sync.WaitGroup
	sleep func(time.Duration)
}

// Receive errors other than a closed socket are retried with a doubling
// delay between these bounds.
const (
	readRetryMin = 10 * time.Millisecond
	readRetryMax = 500 * time.Millisecond
)

// NewUDPSubscriber binds addr (e.g. ":5555") and starts the reader.
// queueSize bounds the backlog; a size <= 0 uses DefaultQueueSize.
func NewUDPSubscriber(addr string, queueSize int) (*UDPSubscriber, error) {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	conn, err := reuseport.ListenPacket("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	s := &UDPSubscriber{
		conn:  conn,
		queue: make(chan []byte, queueSize),
		sleep: time.Sleep,
	}
	s.wg.Add(1)
	go s.readLoop()

	debug.Verbose("Bus: subscribed on %s", conn.LocalAddr())
	return s, nil
}

// Addr returns the bound local address.
func (s *UDPSubscriber) Addr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *UDPSubscriber) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, MaxPayload)
	failures := 0
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			failures++
			delay := retryDelay(failures)
			// Log the first failure of a run, then every 100th.
			if failures == 1 || failures%100 == 0 {
				debug.Error(fmt.Errorf("bus receive (%d consecutive failures, retry in %v): %w", failures, delay, err))
			}
			s.sleep(delay)
			continue
		}
		failures = 0
		msg := make([]byte, n)
		copy(msg, buf[:n])
		select {
		case s.queue <- msg:
			debug.Trace("Bus: %d bytes from %s", n, from)
		default:
			debug.Trace("Bus: queue full, dropping %d bytes from %s", n, from)
		}
	}
}

// TryReceive implements Subscriber.
func (s *UDPSubscriber) TryReceive() ([]byte, bool) {
	select {
	case msg := <-s.queue:
		return msg, true
	default:
		return nil, false
	}
}

// Close stops the reader and releases the socket.
func (s *UDPSubscriber) Close() error {
	err := s.conn.Close()
	s.wg.Wait()
	return err
}

// retryDelay returns the pause after the nth consecutive receive failure.
func retryDelay(n int) time.Duration {
	d := readRetryMin
	for i := 1; i < n && d < readRetryMax; i++ {
		d *= 2
	}
	return min(d, readRetryMax)
}

func enableBroadcast(conn net.PacketConn) error {
	sc, ok := conn.(interface {
		SyscallConn() (syscall.RawConn, error)
	})
	if !ok {
		return fmt.Errorf("unsupported socket type %T", conn)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
