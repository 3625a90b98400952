package wire

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/feed"
	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// Disconnect reason codes reported through OnDisconnected.
const (
	ReasonRemoteClose = 1
	ReasonReadError   = 2
)

// Option configures the gateway transport.
type Option struct {
	Mode             feed.Mode
	TCPAddress       string
	MulticastAddress string
	// InterfaceIP selects the NIC joining the multicast group.
	// Empty or 0.0.0.0 uses the system default.
	InterfaceIP string
	// DialTimeout bounds the TCP dial. Defaults to 10s.
	DialTimeout time.Duration
	// MaxLineBytes bounds one inbound frame. Defaults to 1MiB.
	MaxLineBytes int
}

// Feed is the newline-delimited JSON gateway transport. It implements the
// vendor capability over either an authenticated TCP stream or a UDP
// multicast group.
type Feed struct {
	opt Option
	cb  feed.Callbacks

	mu          sync.Mutex
	conn        net.Conn
	pc          *net.UDPConn
	expectClose bool

	writeMu sync.Mutex
}

// New builds the transport. Callbacks fire on the read goroutine.
func New(opt Option, cb feed.Callbacks) (*Feed, error) {
	if opt.Mode != feed.ModeTCP && opt.Mode != feed.ModeMulticast {
		return nil, errors.Wrap(exception.ErrUnsupportedMode, "build wire feed").
			With("mode", opt.Mode.String())
	}
	if opt.DialTimeout <= 0 {
		opt.DialTimeout = 10 * time.Second
	}
	if opt.MaxLineBytes <= 0 {
		opt.MaxLineBytes = 1 << 20
	}
	return &Feed{opt: opt, cb: cb}, nil
}

// Connect establishes the session and starts the read loop.
func (f *Feed) Connect(ctx context.Context) error {
	f.mu.Lock()
	if f.conn != nil || f.pc != nil {
		f.mu.Unlock()
		return nil
	}
	f.expectClose = false
	f.mu.Unlock()

	if f.opt.Mode == feed.ModeMulticast {
		return f.joinGroup()
	}
	return f.dialTCP(ctx)
}

func (f *Feed) dialTCP(ctx context.Context) error {
	if _, _, err := net.SplitHostPort(f.opt.TCPAddress); err != nil {
		return errors.Wrap(exception.ErrBadAddress, err.Error()).
			With("address", f.opt.TCPAddress)
	}
	d := net.Dialer{Timeout: f.opt.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", f.opt.TCPAddress)
	if err != nil {
		return errors.Wrap(err, "dial feed gateway").With("address", f.opt.TCPAddress)
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	go f.readTCP(conn)
	if f.cb.OnConnected != nil {
		f.cb.OnConnected()
	}
	return nil
}

func (f *Feed) joinGroup() error {
	gaddr, err := net.ResolveUDPAddr("udp", f.opt.MulticastAddress)
	if err != nil {
		return errors.Wrap(exception.ErrBadAddress, err.Error()).
			With("address", f.opt.MulticastAddress)
	}
	ifi, err := interfaceByIP(f.opt.InterfaceIP)
	if err != nil {
		return err
	}
	pc, err := net.ListenMulticastUDP("udp", ifi, gaddr)
	if err != nil {
		return errors.Wrap(err, "join multicast group").With("address", f.opt.MulticastAddress)
	}

	f.mu.Lock()
	f.pc = pc
	f.mu.Unlock()

	go f.readUDP(pc)
	if f.cb.OnConnected != nil {
		f.cb.OnConnected()
	}
	return nil
}

// Disconnect tears the session down without firing OnDisconnected.
func (f *Feed) Disconnect() error {
	f.mu.Lock()
	f.expectClose = true
	conn, pc := f.conn, f.pc
	f.conn, f.pc = nil, nil
	f.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if pc != nil {
		_ = pc.Close()
	}
	return nil
}

// Login submits credentials. The ack arrives via OnLoginResult.
func (f *Feed) Login(c feed.Credentials) error {
	return f.send(frame{Type: frameLogin, UserID: c.UserID, Password: c.Password})
}

// Subscribe requests one batch of securities. On multicast the group already
// carries everything, so the batch is acknowledged locally.
func (f *Feed) Subscribe(kind enum.DataKind, securities []string, exchange enum.Exchange) error {
	if f.opt.Mode == feed.ModeMulticast {
		f.ackLocally(kind, securities, exchange)
		return nil
	}
	return f.send(frame{
		Type:       frameSub,
		Kind:       kind.String(),
		Exchange:   exchange.String(),
		Securities: securities,
	})
}

// Unsubscribe cancels previously requested securities.
func (f *Feed) Unsubscribe(kind enum.DataKind, securities []string, exchange enum.Exchange) error {
	if f.opt.Mode == feed.ModeMulticast {
		return nil
	}
	return f.send(frame{
		Type:       frameUnsub,
		Kind:       kind.String(),
		Exchange:   exchange.String(),
		Securities: securities,
	})
}

func (f *Feed) ackLocally(kind enum.DataKind, securities []string, exchange enum.Exchange) {
	if f.cb.OnSubResult == nil {
		return
	}
	for _, sec := range securities {
		f.cb.OnSubResult(model.SubKey{Kind: kind, Exchange: exchange, SecurityID: sec}, true)
	}
}

func (f *Feed) send(fr frame) error {
	buf, err := encodeFrame(fr)
	if err != nil {
		return err
	}

	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return exception.ErrNotConnected
	}

	f.writeMu.Lock()
	_, err = conn.Write(buf)
	f.writeMu.Unlock()
	if err != nil {
		return errors.Wrap(err, "write frame").With("type", fr.Type)
	}
	return nil
}

func (f *Feed) readTCP(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64<<10), f.opt.MaxLineBytes)
	for scanner.Scan() {
		f.handleLine(scanner.Bytes())
	}

	reason := ReasonRemoteClose
	if scanner.Err() != nil {
		reason = ReasonReadError
	}
	f.readEnded(conn, nil, reason)
}

func (f *Feed) readUDP(pc *net.UDPConn) {
	buf := make([]byte, 64<<10)
	for {
		n, _, err := pc.ReadFromUDP(buf)
		if err != nil {
			f.readEnded(nil, pc, ReasonReadError)
			return
		}
		if n > 0 {
			f.handleLine(buf[:n])
		}
	}
}

// readEnded reports the loss upstream unless the close was deliberate.
func (f *Feed) readEnded(conn net.Conn, pc *net.UDPConn, reason int) {
	f.mu.Lock()
	current := (conn != nil && f.conn == conn) || (pc != nil && f.pc == pc)
	expected := f.expectClose
	if current {
		if conn != nil {
			f.conn = nil
		}
		if pc != nil {
			f.pc = nil
		}
	}
	f.mu.Unlock()

	if !current || expected {
		return
	}
	if conn != nil {
		_ = conn.Close()
	}
	if pc != nil {
		_ = pc.Close()
	}
	if f.cb.OnDisconnected != nil {
		f.cb.OnDisconnected(reason)
	}
}

func (f *Feed) handleLine(line []byte) {
	fr, err := decodeFrame(line)
	if err != nil {
		logs.Warnf("bad frame from gateway: %v", err)
		return
	}

	switch fr.Type {
	case frameLoginAck:
		if f.cb.OnLoginResult == nil {
			return
		}
		if fr.OK {
			f.cb.OnLoginResult(nil)
			return
		}
		err := error(exception.ErrLoginRejected)
		if fr.Message != "" {
			err = errors.Wrap(exception.ErrLoginRejected, fr.Message)
		}
		f.cb.OnLoginResult(err)

	case frameSubAck:
		if f.cb.OnSubResult == nil {
			return
		}
		kind, ok := enum.ParseDataKind(fr.Kind)
		if !ok {
			return
		}
		exchange, ok := enum.ParseExchange(fr.Exchange)
		if !ok {
			return
		}
		key := model.SubKey{Kind: kind, Exchange: exchange, SecurityID: fr.SecurityID}
		f.cb.OnSubResult(key, fr.OK)

	case frameEvent:
		if f.cb.OnEvent == nil {
			return
		}
		e, err := decodeEvent(fr)
		if err != nil {
			logs.Warnf("bad event from gateway: %v", err)
			return
		}
		f.cb.OnEvent(e)
	}
}

func interfaceByIP(ip string) (*net.Interface, error) {
	if ip == "" || ip == "0.0.0.0" {
		return nil, nil
	}
	ifis, err := net.Interfaces()
	if err != nil {
		return nil, errors.Wrap(err, "list interfaces")
	}
	for i := range ifis {
		addrs, err := ifis[i].Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.String() == ip {
				return &ifis[i], nil
			}
		}
	}
	return nil, errors.Wrap(exception.ErrBadAddress, "no interface with ip").With("ip", ip)
}
