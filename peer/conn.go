package peer

import (
	"context"
	"net"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/peer"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected = errors.New("peer not connected")
	ErrDisconnected = errors.New("peer disconnected")
)

// Handler receives events of a peer connection in arrival order.
//
// Note, all methods are called from the peer input goroutine and should not block.
type Handler interface {
	// OnReady is called once the version handshake completes.
	OnReady()

	OnHeaders(msg *wire.MsgHeaders)
	OnInv(msg *wire.MsgInv)
	OnTx(msg *wire.MsgTx)
	OnBlock(msg *wire.MsgBlock)
	OnNotFound(msg *wire.MsgNotFound)

	// OnDisconnect is called once the connection is closed for any reason.
	OnDisconnect(err error)
}

// Dialer dials a network connection.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// Conn is an outbound connection to a single trusted peer.
type Conn struct {
	config Config
	params *chaincfg.Params
	dial   Dialer

	mu   sync.Mutex
	peer *peer.Peer

	// both ends share the nonce cache when running in the same process
	allowSelfConns bool
}

// NewConn creates a connection with the given config, and an optional dialer for test purpose.
func NewConn(config Config, dialer ...Dialer) (*Conn, error) {
	params, err := config.Params()
	if err != nil {
		return nil, err
	}

	conn := Conn{
		config: config,
		params: params,
	}

	if len(dialer) > 0 && dialer[0] != nil {
		conn.dial = dialer[0]
	} else {
		conn.dial = (&net.Dialer{Timeout: config.DialTimeout}).DialContext
	}

	return &conn, nil
}

// Params returns the chain params of the connected network.
func (c *Conn) Params() *chaincfg.Params {
	return c.params
}

func (c *Conn) String() string {
	return c.config.Address
}

// Connect dials the peer and starts the handshake, while handler is notified
// once the handshake completes.
func (c *Conn) Connect(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.peer != nil {
		return errors.New("Already connected")
	}

	p, err := peer.NewOutboundPeer(c.peerConfig(handler), c.config.Address)
	if err != nil {
		return errors.WithMessagef(err, "Failed to create outbound peer %v", c.config.Address)
	}

	netConn, err := c.dial(ctx, "tcp", c.config.Address)
	if err != nil {
		return errors.WithMessagef(err, "Failed to dial peer %v", c.config.Address)
	}

	p.AssociateConnection(netConn)
	c.peer = p

	go func() {
		p.WaitForDisconnect()

		logrus.WithField("peer", c.config.Address).Info("Peer disconnected")
		handler.OnDisconnect(ErrDisconnected)
	}()

	logrus.WithFields(logrus.Fields{
		"peer":  c.config.Address,
		"magic": c.params.Net,
	}).Info("Peer connection established")

	return nil
}

func (c *Conn) peerConfig(handler Handler) *peer.Config {
	return &peer.Config{
		UserAgentName:    c.config.UserAgentName,
		UserAgentVersion: c.config.UserAgentVersion,
		ChainParams:      c.params,
		ProtocolVersion:  c.config.ProtocolVersion,
		AllowSelfConns:   c.allowSelfConns,
		Listeners: peer.MessageListeners{
			OnVerAck: func(p *peer.Peer, msg *wire.MsgVerAck) {
				peerMetrics.Recv(msg.Command()).Mark(1)
				handler.OnReady()
			},
			OnHeaders: func(p *peer.Peer, msg *wire.MsgHeaders) {
				peerMetrics.Recv(msg.Command()).Mark(1)
				handler.OnHeaders(msg)
			},
			OnInv: func(p *peer.Peer, msg *wire.MsgInv) {
				peerMetrics.Recv(msg.Command()).Mark(1)
				handler.OnInv(msg)
			},
			OnTx: func(p *peer.Peer, msg *wire.MsgTx) {
				peerMetrics.Recv(msg.Command()).Mark(1)
				handler.OnTx(msg)
			},
			OnBlock: func(p *peer.Peer, msg *wire.MsgBlock, buf []byte) {
				peerMetrics.Recv(msg.Command()).Mark(1)
				peerMetrics.BlockSize().Update(int64(len(buf)))
				handler.OnBlock(msg)
			},
			OnNotFound: func(p *peer.Peer, msg *wire.MsgNotFound) {
				peerMetrics.Recv(msg.Command()).Mark(1)
				logrus.WithField("items", len(msg.InvList)).Debug("Peer replied notfound")
				handler.OnNotFound(msg)
			},
			OnReject: func(p *peer.Peer, msg *wire.MsgReject) {
				logrus.WithFields(logrus.Fields{
					"cmd":    msg.Cmd,
					"code":   msg.Code,
					"reason": msg.Reason,
				}).Warn("Peer rejected message")
			},
		},
	}
}

// Send queues a message to send to the peer.
func (c *Conn) Send(msg wire.Message) error {
	c.mu.Lock()
	p := c.peer
	c.mu.Unlock()

	if p == nil || !p.Connected() {
		return ErrNotConnected
	}

	p.QueueMessage(msg, nil)
	peerMetrics.Send(msg.Command()).Mark(1)

	return nil
}

// Close disconnects the peer and waits for shutdown.
func (c *Conn) Close() {
	c.mu.Lock()
	p := c.peer
	c.mu.Unlock()

	if p != nil {
		p.Disconnect()
		p.WaitForDisconnect()
	}
}
