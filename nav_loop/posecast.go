package main

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"waypoint-nav/utils"
)

const (
	posecastWriteWait = 250 * time.Millisecond
	posecastQueue     = 16
)

// PoseFrame is one message on the /pose stream.
type PoseFrame struct {
	RunID    string    `json:"run_id"`
	Digest   string    `json:"digest"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Theta    float64   `json:"theta"`
	State    string    `json:"state"`
	LinearX  float64   `json:"linear_x"`
	AngularZ float64   `json:"angular_z"`
	Stamp    time.Time `json:"stamp"`
}

type posecastClient struct {
	conn *websocket.Conn
	send chan PoseFrame
}

// Posecast streams pose frames to websocket observers. Slow observers miss
// frames instead of stalling the control loop.
type Posecast struct {
	log      *utils.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*posecastClient]struct{}
	closed  bool
}

func NewPosecast(log *utils.Logger) *Posecast {
	return &Posecast{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*posecastClient]struct{}),
	}
}

// Handler serves the stream at /pose.
func (p *Posecast) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/pose", p.handlePose)
	return mux
}

func (p *Posecast) handlePose(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.log.Warn("posecast upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	c := &posecastClient{conn: conn, send: make(chan PoseFrame, posecastQueue)}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		return
	}
	p.clients[c] = struct{}{}
	n := len(p.clients)
	p.mu.Unlock()
	p.log.Info("posecast observer %s connected (%d total)", conn.RemoteAddr(), n)

	go p.writeLoop(c)

	// Observers never send anything; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	p.drop(c)
}

func (p *Posecast) writeLoop(c *posecastClient) {
	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(posecastWriteWait))
		if err := c.conn.WriteJSON(frame); err != nil {
			p.log.Debug("posecast write to %s failed: %v", c.conn.RemoteAddr(), err)
			_ = c.conn.Close()
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "node stopping"),
		time.Now().Add(posecastWriteWait))
	_ = c.conn.Close()
}

func (p *Posecast) drop(c *posecastClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.clients[c]; !ok {
		return
	}
	delete(p.clients, c)
	close(c.send)
	p.log.Info("posecast observer %s disconnected", c.conn.RemoteAddr())
}

// Publish queues frame for every observer.
func (p *Posecast) Publish(frame PoseFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := range p.clients {
		select {
		case c.send <- frame:
		default:
		}
	}
}

func (p *Posecast) Observers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Close disconnects every observer and refuses new ones.
func (p *Posecast) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for c := range p.clients {
		delete(p.clients, c)
		close(c.send)
	}
}

// Serve listens on addr until ctx ends.
func (p *Posecast) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "posecast listen %s", addr)
	}
	return p.serve(ctx, ln)
}

func (p *Posecast) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: p.Handler(), ReadHeaderTimeout: 5 * time.Second}
	p.log.Info("posecast listening on ws://%s/pose", ln.Addr())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		p.Close()
		return errors.Wrap(err, "posecast serve")
	case <-ctx.Done():
	}

	// Hijacked websocket connections are not tracked by Shutdown.
	p.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "posecast shutdown")
	}
	return nil
}
