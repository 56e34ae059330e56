package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/mcuadros/go-defaults"
	"github.com/peerquery/peerquery/peer"
	"github.com/peerquery/peerquery/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrConnectionClosed = errors.New("peer connection closed")
	ErrRequestTimeout   = errors.New("request timeout")
	ErrBlockNotFound    = errors.New("block not found")
)

var _ peer.Handler = (*Dispatcher)(nil)

// Sender sends messages to the peer.
type Sender interface {
	Send(msg wire.Message) error
}

type Config struct {
	// RequestTimeout bounds every one-shot request.
	RequestTimeout time.Duration `default:"60s"`
	// EventBuffer is the number of peer events buffered before the peer input blocks.
	EventBuffer int `default:"1024"`
	// NotifyBufferBytes is the memory limit of pending subscriber notifications,
	// and notifications beyond the limit are dropped.
	NotifyBufferBytes int `default:"67108864"`
}

func DefaultConfig() (config Config) {
	defaults.SetDefaults(&config)
	return
}

// notification is a subscriber call queued off the dispatcher loop.
type notification struct {
	run  func()
	size int
}

func (n notification) Size() int {
	return n.size
}

// Dispatcher correlates unsolicited peer events with the outstanding one-shot
// request and the persistent subscriptions.
//
// All peer events and state mutations are executed in arrival order by a single
// loop goroutine, and subscribers are called from another notifier goroutine.
type Dispatcher struct {
	config Config
	sender Sender

	events chan func()
	queue  *MemoryBoundedChannel[notification]

	// serializes one-shot requests
	busy chan struct{}

	readyCh chan struct{}
	downCh  chan struct{}
	downErr error

	// canceled on close to abort pending guard calls
	ctx    context.Context
	cancel context.CancelFunc

	quit      chan struct{}
	closeOnce sync.Once
	downOnce  sync.Once
	wg        sync.WaitGroup

	// states below are confined to the loop goroutine
	ready       bool
	request     *RequestContext
	live        map[chainhash.Hash]struct{}
	blockWanted map[chainhash.Hash]time.Time
	guard       BlockGuard
	subs        subscriptions
}

// New creates a dispatcher that sends requests via the given sender, and starts
// to process events. The dispatcher should be registered as the peer handler.
func New(sender Sender, config Config) *Dispatcher {
	d := Dispatcher{
		config:      config,
		sender:      sender,
		events:      make(chan func(), max(config.EventBuffer, 1)),
		queue:       NewMemoryBoundedChannel[notification](max(config.NotifyBufferBytes, 1)),
		busy:        make(chan struct{}, 1),
		readyCh:     make(chan struct{}),
		downCh:      make(chan struct{}),
		quit:        make(chan struct{}),
		live:        make(map[chainhash.Hash]struct{}),
		blockWanted: make(map[chainhash.Hash]time.Time),
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.wg.Add(2)
	go d.loop()
	go d.notifyLoop()

	return &d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	for {
		select {
		case fn := <-d.events:
			fn()
		case <-d.quit:
			d.reject(ErrConnectionClosed)
			return
		}
	}
}

func (d *Dispatcher) notifyLoop() {
	defer d.wg.Done()

	for {
		n, err := d.queue.Receive()
		if err != nil {
			return
		}

		d.run(n)
	}
}

func (d *Dispatcher) run(n notification) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("Subscriber panicked")
		}
	}()

	n.run()
}

// exec enqueues fn to execute on the loop goroutine in order.
func (d *Dispatcher) exec(fn func()) error {
	select {
	case d.events <- fn:
		return nil
	case <-d.quit:
		return ErrConnectionClosed
	}
}

// notify queues a subscriber call without blocking the loop.
func (d *Dispatcher) notify(fn func(), size int) {
	ok, err := d.queue.TrySend(types.NewSized(notification{fn, size}))
	if err != nil {
		return
	}

	if !ok {
		dispatchMetrics.NotifyDropped().Inc(1)
		logrus.WithField("size", size).Warn("Subscriber notification dropped due to memory limit")
	}
}

// Ready returns a channel that is closed once the peer handshake completes.
func (d *Dispatcher) Ready() <-chan struct{} {
	return d.readyCh
}

// Done returns a channel that is closed once the peer connection is closed.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.downCh
}

// Err returns the reason why the dispatcher is down, if any.
func (d *Dispatcher) Err() error {
	select {
	case <-d.downCh:
		return d.downErr
	default:
		return nil
	}
}

func (d *Dispatcher) markDown(err error) {
	d.downOnce.Do(func() {
		d.downErr = err
		close(d.downCh)
	})
}

// Close stops the dispatcher, and rejects the outstanding request if any.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.markDown(ErrConnectionClosed)
		d.cancel()
		close(d.quit)
		d.queue.Close()
		d.wg.Wait()
	})
}

func (d *Dispatcher) waitReady(ctx context.Context) error {
	if err := d.Err(); err != nil {
		return err
	}

	select {
	case <-d.readyCh:
		return nil
	case <-d.downCh:
		return d.downErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// issue installs the request and sends the messages, then waits for the request
// to be resolved. Requests are served one at a time.
func (d *Dispatcher) issue(ctx context.Context, req *RequestContext, msgs ...wire.Message) (any, error) {
	select {
	case d.busy <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-d.busy }()

	if err := d.waitReady(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.RequestTimeout)
	defer cancel()

	start := time.Now()

	err := d.exec(func() {
		if err := d.Err(); err != nil {
			req.resolve(nil, err)
			return
		}

		d.request = req

		for _, msg := range msgs {
			if err := d.sender.Send(msg); err != nil {
				d.complete(nil, errors.WithMessagef(err, "Failed to send %v", msg.Command()))
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}

	select {
	case res := <-req.result:
		dispatchMetrics.Request(req.Kind).UpdateSince(start)
		return res.value, res.err
	case <-d.quit:
		return nil, ErrConnectionClosed
	case <-ctx.Done():
		d.exec(func() {
			if d.request == req {
				d.request = nil
			}
		})

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.WithMessagef(ErrRequestTimeout, "%v request", req.Kind)
		}

		return nil, ctx.Err()
	}
}

// complete resolves the outstanding request and clears it.
func (d *Dispatcher) complete(value any, err error) {
	if req := d.request; req != nil {
		d.request = nil
		req.resolve(value, err)
	}
}

func (d *Dispatcher) reject(err error) {
	if d.request != nil {
		logrus.WithError(err).WithField("kind", d.request.Kind).Debug("Outstanding request rejected")
		d.complete(nil, err)
	}
}

// violation logs and counts an unexpected peer message, which never fails the outstanding request.
func (d *Dispatcher) violation(command string, fields logrus.Fields) {
	dispatchMetrics.Violation(command).Inc(1)

	kind := KindNone
	if d.request != nil {
		kind = d.request.Kind
	}

	logrus.WithFields(fields).WithFields(logrus.Fields{
		"cmd":     command,
		"pending": kind,
	}).Debug("Unexpected peer message ignored")
}

// GetHeaders requests headers with the given paginator until complete.
func (d *Dispatcher) GetHeaders(ctx context.Context, paginator *HeaderPaginator) ([]wire.BlockHeader, error) {
	if paginator.Done() {
		return paginator.Headers(), nil
	}

	req := newRequestContext(KindHeader)
	req.headers = paginator

	value, err := d.issue(ctx, req, paginator.Request())
	if err != nil {
		return nil, err
	}

	return value.([]wire.BlockHeader), nil
}

// GetBlock requests the block of specified hash.
func (d *Dispatcher) GetBlock(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error) {
	req := newRequestContext(KindBlock)
	req.block = hash

	msg := wire.NewMsgGetData()
	msg.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash))

	value, err := d.issue(ctx, req, msg)
	if err != nil {
		return nil, err
	}

	return value.(*wire.MsgBlock), nil
}

// GetMempool requests a snapshot of the peer mempool. Note, the peer may not
// respond if the mempool is empty, in which case ErrRequestTimeout returned.
func (d *Dispatcher) GetMempool(ctx context.Context) ([]*wire.MsgTx, error) {
	req := newRequestContext(KindMempool)
	req.mempool = NewMempoolCollector()

	value, err := d.issue(ctx, req, req.mempool.Request())
	if err != nil {
		return nil, err
	}

	return value.([]*wire.MsgTx), nil
}
