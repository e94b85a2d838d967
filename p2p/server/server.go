// Package server exchanges one-way, length prefixed messages with peers over
// long lived libp2p streams. Messages sent to a peer are received in order.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-varint"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	// ErrNotConnected is returned when peer is not connected.
	ErrNotConnected = errors.New("peer is not connected")
	// ErrMessageTooLarge is returned for messages over the size limit.
	ErrMessageTooLarge = errors.New("message is too large")
)

// Opt is a type to configure a server.
type Opt func(s *Server)

// WithTimeout configures write timeout of a single message.
func WithTimeout(timeout time.Duration) Opt {
	return func(s *Server) {
		s.timeout = timeout
	}
}

// WithLog configures logger for the server.
func WithLog(logger *zap.Logger) Opt {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMessageSizeLimit limits the size of sent and received messages.
func WithMessageSizeLimit(limit int) Opt {
	return func(s *Server) {
		s.messageLimit = limit
	}
}

// WithMetrics will enable metrics collection in the server.
func WithMetrics() Opt {
	return func(s *Server) {
		s.metrics = newTracker(s.protocol)
	}
}

// WithQueueSize parametrize number of inbound streams that will be kept in queue
// and eventually processed by server. Otherwise stream is closed immediately.
//
// Defaults to 100.
func WithQueueSize(size int) Opt {
	return func(s *Server) {
		s.queueSize = size
	}
}

// WithMessagesPerInterval parametrizes server rate limit to limit maximum amount of
// messages that this handler can consume.
//
// Defaults to 10000 messages per second.
func WithMessagesPerInterval(n int, interval time.Duration) Opt {
	return func(s *Server) {
		s.messagesPerInterval = n
		s.interval = interval
	}
}

// Handler processes a message received from the peer.
// Messages from a single peer are handled sequentially.
type Handler func(context.Context, peer.ID, []byte) error

// Host is a subset of libp2p host.Host used by the server.
type Host interface {
	SetStreamHandler(protocol.ID, network.StreamHandler)
	RemoveStreamHandler(protocol.ID)
	NewStream(context.Context, peer.ID, ...protocol.ID) (network.Stream, error)
	Network() network.Network
}

type outbound struct {
	mu     sync.Mutex
	stream network.Stream
	wr     *bufio.Writer
}

// Server for the Handler.
type Server struct {
	logger              *zap.Logger
	protocol            string
	handler             Handler
	timeout             time.Duration
	messageLimit        int
	queueSize           int
	messagesPerInterval int
	interval            time.Duration

	metrics *tracker // metrics can be nil

	h Host

	mu       sync.Mutex
	outbound map[peer.ID]*outbound
	inbound  map[network.Stream]struct{}
}

// New server for the handler.
func New(h Host, proto string, handler Handler, opts ...Opt) *Server {
	srv := &Server{
		logger:              zap.NewNop(),
		protocol:            proto,
		handler:             handler,
		h:                   h,
		timeout:             10 * time.Second,
		messageLimit:        4 << 20,
		queueSize:           100,
		messagesPerInterval: 10000,
		interval:            time.Second,
		outbound:            map[peer.ID]*outbound{},
		inbound:             map[network.Stream]struct{}{},
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Run accepts inbound streams until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	limit := rate.NewLimiter(rate.Every(s.interval/time.Duration(s.messagesPerInterval)), s.messagesPerInterval)
	queue := make(chan network.Stream, s.queueSize)
	if s.metrics != nil {
		s.metrics.targetQueue.Set(float64(s.queueSize))
		s.metrics.targetRps.Set(float64(limit.Limit()))
	}
	s.h.SetStreamHandler(protocol.ID(s.protocol), func(stream network.Stream) {
		select {
		case queue <- stream:
			if s.metrics != nil {
				s.metrics.queue.Set(float64(len(queue)))
				s.metrics.accepted.Inc()
			}
		default:
			if s.metrics != nil {
				s.metrics.dropped.Inc()
			}
			stream.Reset()
		}
	})
	defer s.h.RemoveStreamHandler(protocol.ID(s.protocol))

	var eg errgroup.Group
	eg.SetLimit(s.queueSize)
	for {
		select {
		case <-ctx.Done():
			s.closeStreams()
			eg.Wait()
			return nil
		case stream := <-queue:
			s.mu.Lock()
			s.inbound[stream] = struct{}{}
			s.mu.Unlock()
			eg.Go(func() error {
				defer func() {
					s.mu.Lock()
					delete(s.inbound, stream)
					s.mu.Unlock()
				}()
				s.readStream(ctx, limit, stream)
				return nil
			})
		}
	}
}

func (s *Server) closeStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for stream := range s.inbound {
		stream.Reset()
	}
	for pid, out := range s.outbound {
		out.stream.Close()
		delete(s.outbound, pid)
	}
}

func (s *Server) readStream(ctx context.Context, limit *rate.Limiter, stream network.Stream) {
	defer stream.Close()
	pid := stream.Conn().RemotePeer()
	logger := s.logger.With(
		zap.String("protocol", s.protocol),
		zap.Stringer("remotePeer", pid),
		zap.Stringer("remoteMultiaddr", stream.Conn().RemoteMultiaddr()),
	)
	rd := bufio.NewReader(stream)
	for {
		size, err := varint.ReadUvarint(rd)
		if errors.Is(err, io.EOF) {
			return
		} else if err != nil {
			logger.Debug("read failed", zap.Error(err))
			return
		}
		if size > uint64(s.messageLimit) {
			logger.Warn("message limit overflow",
				zap.Int("limit", s.messageLimit),
				zap.Uint64("message", size),
			)
			stream.Reset()
			return
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(rd, buf); err != nil {
			logger.Debug("error reading message", zap.Error(err))
			return
		}
		if err := limit.Wait(ctx); err != nil {
			return
		}
		start := time.Now()
		err = s.handler(ctx, pid, buf)
		if s.metrics != nil {
			s.metrics.handlerLatency.Observe(time.Since(start).Seconds())
			if err != nil {
				s.metrics.rejected.Inc()
			} else {
				s.metrics.received.Inc()
			}
		}
		if err != nil {
			logger.Debug("handler reported error", zap.Error(err))
		}
	}
}

// Send writes the message to the stream opened to the peer. The stream is
// opened on the first message and reused afterwards.
func (s *Server) Send(ctx context.Context, pid peer.ID, msg []byte) error {
	if len(msg) > s.messageLimit {
		return fmt.Errorf("%w: length %d over limit %d", ErrMessageTooLarge, len(msg), s.messageLimit)
	}
	start := time.Now()
	err := s.send(ctx, pid, msg)
	if s.metrics != nil {
		if err != nil {
			s.metrics.sendFailed.Inc()
		} else {
			s.metrics.sent.Inc()
			s.metrics.sendLatency.Observe(time.Since(start).Seconds())
		}
	}
	return err
}

func (s *Server) send(ctx context.Context, pid peer.ID, msg []byte) error {
	out, err := s.open(ctx, pid)
	if err != nil {
		return err
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if err := out.stream.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Debug("write deadline not set", zap.Stringer("peer", pid), zap.Error(err))
	}
	if _, err := out.wr.Write(varint.ToUvarint(uint64(len(msg)))); err != nil {
		s.drop(pid, out)
		return fmt.Errorf("peer %s address %s: %w", pid, out.stream.Conn().RemoteMultiaddr(), err)
	}
	if _, err := out.wr.Write(msg); err != nil {
		s.drop(pid, out)
		return fmt.Errorf("peer %s address %s: %w", pid, out.stream.Conn().RemoteMultiaddr(), err)
	}
	if err := out.wr.Flush(); err != nil {
		s.drop(pid, out)
		return fmt.Errorf("peer %s address %s: %w", pid, out.stream.Conn().RemoteMultiaddr(), err)
	}
	return nil
}

func (s *Server) open(ctx context.Context, pid peer.ID) (*outbound, error) {
	s.mu.Lock()
	out, exist := s.outbound[pid]
	s.mu.Unlock()
	if exist {
		return out, nil
	}
	if s.h.Network().Connectedness(pid) != network.Connected {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, pid)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stream, err := s.h.NewStream(network.WithNoDial(ctx, "existing connection"), pid, protocol.ID(s.protocol))
	if err != nil {
		return nil, fmt.Errorf("open stream to %s: %w", pid, err)
	}
	out = &outbound{stream: stream, wr: bufio.NewWriter(stream)}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, exist := s.outbound[pid]; exist {
		stream.Close()
		return existing, nil
	}
	s.outbound[pid] = out
	return out, nil
}

func (s *Server) drop(pid peer.ID, out *outbound) {
	out.stream.Reset()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outbound[pid] == out {
		delete(s.outbound, pid)
	}
}

// Disconnected forgets the outbound stream to the peer.
func (s *Server) Disconnected(pid peer.ID) {
	s.mu.Lock()
	out, exist := s.outbound[pid]
	delete(s.outbound, pid)
	s.mu.Unlock()
	if exist {
		out.stream.Reset()
	}
}

// NumReceivedMessages returns the number of handled messages for this server.
// It is used for testing.
func (s *Server) NumReceivedMessages() int {
	if s.metrics == nil {
		return -1
	}
	m := &dto.Metric{}
	if err := s.metrics.received.Write(m); err != nil {
		panic("failed to get metric: " + err.Error())
	}
	return int(m.Counter.GetValue())
}
