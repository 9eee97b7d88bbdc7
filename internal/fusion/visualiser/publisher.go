// Package visualiser streams ranked cluster reports to remote viewers over
// gRPC. Publisher is a pipeline cluster sink; reports are queued without
// blocking the pipeline and fanned out to every connected stream.
package visualiser

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/sensor.fusion/internal/fusion"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
)

// Config holds configuration for the gRPC server.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "localhost:50051")
	ListenAddr string

	// MaxClients is the maximum number of concurrent streaming clients
	MaxClients int

	// QueueSize bounds reports waiting for broadcast; ClientBuffer bounds
	// reports waiting per client.
	QueueSize    int
	ClientBuffer int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   "localhost:50051",
		MaxClients:   5,
		QueueSize:    100,
		ClientBuffer: 10,
	}
}

type report struct {
	cameraID string
	msg      *structpb.Struct
}

type clientStream struct {
	id       string
	cameraID string
	ch       chan report
}

// Publisher manages the gRPC server and report streaming.
type Publisher struct {
	config   Config
	server   *grpc.Server
	listener net.Listener
	health   *health.Server

	queue     chan report
	clients   map[string]*clientStream
	clientsMu sync.RWMutex
	nextID    atomic.Uint64

	published   atomic.Uint64
	dropped     atomic.Uint64
	clientCount atomic.Int32

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPublisher creates a new Publisher with the given configuration.
func NewPublisher(cfg Config) *Publisher {
	d := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = d.QueueSize
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = d.ClientBuffer
	}
	return &Publisher{
		config:  cfg,
		queue:   make(chan report, cfg.QueueSize),
		clients: make(map[string]*clientStream),
		stopCh:  make(chan struct{}),
	}
}

// Start listens on ListenAddr and serves in the background.
func (p *Publisher) Start() error {
	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.Serve(lis)
}

// Serve starts serving on lis in the background.
func (p *Publisher) Serve(lis net.Listener) error {
	if p.running.Load() {
		return fmt.Errorf("publisher already running")
	}
	p.listener = lis

	const maxMsgSize = 16 * 1024 * 1024 // 16 MB
	p.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	RegisterClusterStreamServer(p.server, p)
	p.health = health.NewServer()
	healthpb.RegisterHealthServer(p.server, p.health)
	p.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	p.running.Store(true)

	p.wg.Add(1)
	go p.broadcastLoop()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fusion.Opsf("visualiser: gRPC server listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			fusion.Opsf("visualiser: gRPC server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully stops the gRPC server.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	p.health.Shutdown()
	close(p.stopCh)

	p.server.GracefulStop()
	p.listener.Close()

	p.wg.Wait()
	fusion.Opsf("visualiser: gRPC server stopped")
}

// PublishClusters queues a report for every matching client. A full queue
// drops the report; the pipeline is never blocked.
func (p *Publisher) PublishClusters(_ context.Context, r pipeline.ClusterReport) error {
	if !p.running.Load() {
		return nil
	}
	msg, err := EncodeReport(r)
	if err != nil {
		return fmt.Errorf("failed to encode cluster report: %w", err)
	}
	select {
	case p.queue <- report{cameraID: r.CameraID, msg: msg}:
		p.published.Add(1)
	default:
		dropped := p.dropped.Add(1)
		fusion.Opsf("visualiser: dropped report for frame %s camera %s (total dropped: %d), queue full",
			r.FrameID, r.CameraID, dropped)
	}
	return nil
}

// broadcastLoop distributes reports to all connected clients.
func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case r := <-p.queue:
			p.clientsMu.RLock()
			for _, c := range p.clients {
				if c.cameraID != "" && c.cameraID != r.cameraID {
					continue
				}
				select {
				case c.ch <- r:
				default:
					// Slow client.
					p.dropped.Add(1)
				}
			}
			p.clientsMu.RUnlock()
		}
	}
}

// StreamClusters implements ClusterStreamServer.
func (p *Publisher) StreamClusters(req *structpb.Struct, stream grpc.ServerStream) error {
	cameraID := req.GetFields()["camera_id"].GetStringValue()
	c, err := p.addClient(cameraID)
	if err != nil {
		return err
	}
	defer p.removeClient(c.id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case r := <-c.ch:
			if err := stream.SendMsg(r.msg); err != nil {
				return err
			}
		}
	}
}

func (p *Publisher) addClient(cameraID string) (*clientStream, error) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if p.config.MaxClients > 0 && len(p.clients) >= p.config.MaxClients {
		return nil, status.Errorf(codes.ResourceExhausted, "client limit %d reached", p.config.MaxClients)
	}
	c := &clientStream{
		id:       fmt.Sprintf("grpc-%d", p.nextID.Add(1)),
		cameraID: cameraID,
		ch:       make(chan report, p.config.ClientBuffer),
	}
	p.clients[c.id] = c
	n := p.clientCount.Add(1)
	fusion.Diagf("visualiser: client connected: %s camera=%q (total: %d)", c.id, cameraID, n)
	return c, nil
}

func (p *Publisher) removeClient(id string) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if _, ok := p.clients[id]; ok {
		delete(p.clients, id)
		n := p.clientCount.Add(-1)
		fusion.Diagf("visualiser: client disconnected: %s (remaining: %d)", id, n)
	}
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Published:   p.published.Load(),
		Dropped:     p.dropped.Load(),
		ClientCount: p.clientCount.Load(),
		Running:     p.running.Load(),
	}
}

// PublisherStats contains publisher statistics.
type PublisherStats struct {
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
	ClientCount int32  `json:"client_count"`
	Running     bool   `json:"running"`
}
