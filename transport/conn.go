package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nativecql/coredriver/frame"
	"github.com/nativecql/coredriver/frame/request"
	"github.com/nativecql/coredriver/frame/response"
)

// ErrConnectionClosed is returned to every pending and future request
// once a connection has been torn down.
var ErrConnectionClosed = errors.New("transport: connection closed")

// ConnConfig bundles everything Open needs to bring up one connection:
// the handshake parameters plus socket and heartbeat tuning.
type ConnConfig struct {
	Host              string
	Port              int
	ShardAwarePort    int
	ShardAwarePortSSL int
	ProtocolVersion   frame.ProtocolVersion
	Compression       frame.Compression
	Keyspace          string
	Authenticator     Authenticator
	TLSConfig         *tls.Config
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	DefunctReadTimeout time.Duration
	Logger            Logger
	Observer          ConnObserver
}

// Authenticator performs a connection's SASL round trip.
type Authenticator interface {
	InitialResponse() []byte
	EvaluateChallenge(challenge []byte) ([]byte, error)
}

// Conn is one native-protocol connection: a socket, a stream-id
// allocator, and the read/write goroutines that multiplex requests onto
// it. Shard, once known, is fixed for the connection's lifetime.
type Conn struct {
	cfg     ConnConfig
	netConn net.Conn
	streams *streamTable

	Shard       int
	ShardKnown  bool
	Sharding    ShardingInfo

	inFlight   atomic.Int64
	lastIO     atomic.Int64 // unix nanos
	timedOutOps atomic.Int64
	compressing atomic.Bool // set once STARTUP has been answered

	closeOnce sync.Once
	closed    chan struct{}
	writeMu   sync.Mutex
}

// ShardingInfo is Scylla's per-connection sharding extension, learned
// from the SUPPORTED handshake response. NrShards == 0 means the server
// is a plain Cassandra node (or sharding is otherwise unknown).
type ShardingInfo struct {
	NrShards          int
	ShardAwarePort    int
	ShardAwarePortSSL int
}

// Open performs the full connection lifecycle against an ephemeral
// local port: OPTIONS → SUPPORTED → STARTUP → optional SASL → READY.
// Use this for the pool's first connection to a host, before its
// sharding info (if any) is known. Once nrShards is known, use
// OpenOnShard to place subsequent connections deliberately.
func Open(ctx context.Context, cfg ConnConfig, shardHint int) (*Conn, error) {
	if cfg.Logger == nil {
		cfg.Logger = NopLogger{}
	}
	if cfg.Observer == nil {
		cfg.Observer = NopConnObserver{}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}

	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	if cfg.TLSConfig != nil {
		netConn, err = tlsHandshake(ctx, netConn, cfg.TLSConfig)
		if err != nil {
			return nil, err
		}
	}

	c := &Conn{
		cfg:     cfg,
		netConn: netConn,
		streams: newStreamTable(cfg.ProtocolVersion),
		closed:  make(chan struct{}),
	}
	c.touch()

	go c.readLoop()

	if err := c.handshake(ctx); err != nil {
		c.Close(err)
		return nil, err
	}

	if shardHint >= 0 {
		c.Shard = shardHint
		c.ShardKnown = true
	}

	go c.heartbeatLoop()

	return c, nil
}

// OpenOnShard is the pool's entry point once nrShards is known
// from an existing connection's SUPPORTED response: it dials until the
// local port satisfies p mod nrShards == shardHint exactly.
func OpenOnShard(ctx context.Context, cfg ConnConfig, shardHint, nrShards int) (*Conn, error) {
	if nrShards <= 1 {
		return Open(ctx, cfg, shardHint)
	}
	if cfg.Logger == nil {
		cfg.Logger = NopLogger{}
	}
	if cfg.Observer == nil {
		cfg.Observer = NopConnObserver{}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.ShardAwarePort)
	const attempts = 512
	var netConn net.Conn
	for i := 0; i < attempts; i++ {
		d := &net.Dialer{Timeout: cfg.ConnectTimeout, LocalAddr: &net.TCPAddr{Port: 0}}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("transport: shard-aware dial: %w", err)
		}
		tcpAddr, ok := conn.LocalAddr().(*net.TCPAddr)
		if ok && tcpAddr.Port%nrShards == shardHint {
			netConn = conn
			break
		}
		conn.Close()
	}
	if netConn == nil {
		return nil, fmt.Errorf("transport: could not acquire a source port for shard %d mod %d after %d attempts", shardHint, nrShards, attempts)
	}
	if cfg.TLSConfig != nil {
		var terr error
		netConn, terr = tlsHandshake(ctx, netConn, cfg.TLSConfig)
		if terr != nil {
			return nil, terr
		}
	}

	c := &Conn{
		cfg:     cfg,
		netConn: netConn,
		streams: newStreamTable(cfg.ProtocolVersion),
		closed:  make(chan struct{}),
		Shard:      shardHint,
		ShardKnown: true,
	}
	c.touch()
	go c.readLoop()
	if err := c.handshake(ctx); err != nil {
		c.Close(err)
		return nil, err
	}
	go c.heartbeatLoop()
	return c, nil
}

// tlsHandshake wraps netConn in a TLS client connection and completes
// the handshake within ctx, closing the raw connection on failure so
// callers don't leak a socket on a failed handshake.
func tlsHandshake(ctx context.Context, netConn net.Conn, cfg *tls.Config) (net.Conn, error) {
	tlsConn := tls.Client(netConn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		netConn.Close()
		return nil, fmt.Errorf("transport: TLS handshake: %w", err)
	}
	return tlsConn, nil
}

func (c *Conn) touch() { c.lastIO.Store(time.Now().UnixNano()) }

func (c *Conn) handshake(ctx context.Context) error {
	supported, err := c.roundTrip(ctx, request.Options{})
	if err != nil {
		return fmt.Errorf("transport: OPTIONS: %w", err)
	}
	sup, err := response.ParseSupported(frame.NewBuffer(supported.Body))
	if err != nil {
		return fmt.Errorf("transport: parsing SUPPORTED: %w", err)
	}
	if nr, port, sslPort, ok := sup.ShardingInfo(); ok {
		c.Sharding = ShardingInfo{NrShards: nr, ShardAwarePort: port, ShardAwarePortSSL: sslPort}
	}

	startup := request.Startup{CQLVersion: "3.0.0", Compression: c.cfg.Compression}
	readyResp, err := c.roundTrip(ctx, startup)
	if err != nil {
		return fmt.Errorf("transport: STARTUP: %w", err)
	}
	c.compressing.Store(true)

	switch readyResp.Header.OpCode {
	case frame.OpReady:
		// nothing further
	case frame.OpAuthenticate:
		if err := c.authenticate(ctx, readyResp.Body); err != nil {
			return err
		}
	default:
		return fmt.Errorf("transport: unexpected handshake response opcode 0x%02x", readyResp.Header.OpCode)
	}

	if c.cfg.Keyspace != "" {
		q := request.Query{CQL: "USE " + quoteIdentifier(c.cfg.Keyspace), Params: request.Params{Consistency: frame.ONE}}
		if _, err := c.roundTrip(ctx, q); err != nil {
			return fmt.Errorf("transport: USE keyspace: %w", err)
		}
	}
	return nil
}

func quoteIdentifier(ks string) string { return ks }

func (c *Conn) authenticate(ctx context.Context, authenticateBody []byte) error {
	if c.cfg.Authenticator == nil {
		return fmt.Errorf("transport: server requires authentication, no Authenticator configured")
	}
	resp, err := c.roundTrip(ctx, request.AuthResponse{Token: c.cfg.Authenticator.InitialResponse()})
	if err != nil {
		return fmt.Errorf("transport: AUTH_RESPONSE: %w", err)
	}
	for resp.Header.OpCode == frame.OpAuthChallenge {
		challenge, err := response.ParseAuthChallenge(frame.NewBuffer(resp.Body))
		if err != nil {
			return err
		}
		next, err := c.cfg.Authenticator.EvaluateChallenge(challenge.Token)
		if err != nil {
			return err
		}
		resp, err = c.roundTrip(ctx, request.AuthResponse{Token: next})
		if err != nil {
			return err
		}
	}
	if resp.Header.OpCode != frame.OpAuthSuccess {
		return fmt.Errorf("transport: authentication failed, server returned opcode 0x%02x", resp.Header.OpCode)
	}
	return nil
}

// Send writes req and returns its response frame. The caller owns
// interpreting Body against Header.OpCode (RESULT, ERROR, ...).
func (c *Conn) Send(ctx context.Context, req request.Request) (frame.DecodedFrame, error) {
	return c.roundTrip(ctx, req)
}

func (c *Conn) roundTrip(ctx context.Context, req request.Request) (frame.DecodedFrame, error) {
	id, ch, err := c.streams.Acquire()
	if err != nil {
		return frame.DecodedFrame{}, err
	}
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	body := req.Encode(nil, c.cfg.ProtocolVersion)
	raw, err := frame.EncodeFrame(c.cfg.ProtocolVersion, false, id, req.OpCode(), body, c.streamCompression(), false)
	if err != nil {
		c.streams.Deliver(id, frame.DecodedFrame{}, nil)
		return frame.DecodedFrame{}, err
	}

	c.cfg.Observer.OnRequestStart(id, req.OpCode())

	c.writeMu.Lock()
	_, werr := c.netConn.Write(raw)
	c.writeMu.Unlock()
	if werr != nil {
		c.streams.Deliver(id, frame.DecodedFrame{}, werr)
		c.Close(werr)
		return frame.DecodedFrame{}, fmt.Errorf("transport: write: %w", werr)
	}
	c.touch()

	select {
	case pr := <-ch:
		if pr.err != nil {
			c.cfg.Observer.OnRequestFailure(id, req.OpCode(), pr.err)
			return frame.DecodedFrame{}, pr.err
		}
		c.cfg.Observer.OnRequestSuccess(id, req.OpCode())
		return pr.frame, nil
	case <-ctx.Done():
		c.streams.Orphan(id)
		c.timedOutOps.Add(1)
		return frame.DecodedFrame{}, ctx.Err()
	case <-c.closed:
		return frame.DecodedFrame{}, ErrConnectionClosed
	}
}

// streamCompression decides whether to compress this frame: STARTUP
// itself is always sent uncompressed (the server can't decompress it
// before it knows the negotiated algorithm), every frame after that
// uses whatever the connection negotiated.
func (c *Conn) streamCompression() frame.Compression {
	if !c.compressing.Load() {
		return frame.NoCompression
	}
	return c.cfg.Compression
}

func (c *Conn) readLoop() {
	buf := make([]byte, 0, 128*1024)
	tmp := make([]byte, 64*1024)
	for {
		n, err := c.netConn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			c.Close(fmt.Errorf("transport: read: %w", err))
			return
		}
		c.touch()

		for {
			if len(buf) < c.cfg.ProtocolVersion.HeaderSize() {
				break
			}
			df, consumed, derr := frame.DecodeFrame(buf, c.cfg.ProtocolVersion, c.cfg.Compression)
			if derr != nil {
				break // incomplete frame, wait for more bytes
			}
			buf = buf[consumed:]
			c.dispatch(df)
		}
	}
}

func (c *Conn) dispatch(df frame.DecodedFrame) {
	if df.Header.OpCode == frame.OpEvent {
		c.cfg.Observer.OnEvent(df)
		return
	}
	c.streams.Deliver(df.Header.StreamID, df, nil)
}

func (c *Conn) heartbeatLoop() {
	if c.cfg.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			idleFor := time.Duration(time.Now().UnixNano() - c.lastIO.Load())
			if idleFor < c.cfg.HeartbeatInterval {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HeartbeatInterval)
			_, err := c.roundTrip(ctx, request.Options{})
			cancel()
			if err != nil {
				c.cfg.Logger.Warnf("transport: heartbeat failed on %s: %v", c.netConn.RemoteAddr(), err)
				c.Close(fmt.Errorf("transport: heartbeat timeout: %w", err))
				return
			}
		}
	}
}

// InFlight returns the connection's current outstanding request count,
// used by the pool's borrow algorithm to pick a minimally-loaded
// connection.
func (c *Conn) InFlight() int64 { return c.inFlight.Load() }

// TimedOutOperations is an exponentially decayed count of requests on
// this connection that timed out client-side; nothing in this package
// acts on it. This implementation decays it by halving on each read, which approximates
// the intended exponential decay without tracking wall-clock intervals
// per sample.
func (c *Conn) TimedOutOperations() int64 {
	v := c.timedOutOps.Load()
	c.timedOutOps.Store(v / 2)
	return v
}

func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Close tears the connection down, failing every pending request with
// err (or ErrConnectionClosed if err is nil).
func (c *Conn) Close(err error) {
	c.closeOnce.Do(func() {
		if err == nil {
			err = ErrConnectionClosed
		}
		close(c.closed)
		c.netConn.Close()
		c.streams.FailAll(err)
		c.cfg.Observer.OnClosing(err)
	})
}
