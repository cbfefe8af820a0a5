// Package wsserver implements the Socket Server (C12): it upgrades
// incoming HTTP requests to WebSocket connections and runs the
// connect/subscribe/unsubscribe/query/ping protocol against a shared
// repo registry. Adapted from the accept-loop, connection-tracking,
// and graceful-shutdown shape of a Unix-socket request/response daemon
// to a long-lived, per-connection message loop where every read is
// handled to completion (including a synchronous query dispatch)
// before the next read happens, so response order on one connection
// always matches its query receipt order.
package wsserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/anthropics/semfora/internal/events"
	"github.com/anthropics/semfora/internal/registry"
	"github.com/anthropics/semfora/internal/semerr"
)

const writeTimeout = 5 * time.Second

// QueryHandler dispatches one query{method,params} call against a
// repo's registered context. The concrete ten-method dispatch table
// is built elsewhere and wired in by whoever constructs a Server, so
// this package carries no dependency on the handlers themselves.
type QueryHandler func(rc *registry.RepoContext, method string, params json.RawMessage) (interface{}, error)

// ConnectionInfo is the payload of a connected message, sent once a
// connect request resolves to a RepoContext.
type ConnectionInfo struct {
	ClientID   string   `json:"client_id"`
	RepoID     string   `json:"repo_id"`
	BaseBranch string   `json:"base_branch"`
	Worktrees  []string `json:"worktrees"`
}

type clientMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Directory string          `json:"directory,omitempty"`
	Events    []string        `json:"events,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

type connectedMsg struct {
	Type string `json:"type"`
	ConnectionInfo
}

type subscribedMsg struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
}

type unsubscribedMsg struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
}

type responseMsg struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Result interface{} `json:"result"`
}

type errorMsg struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type eventMsg struct {
	Type    string      `json:"type"`
	Name    string      `json:"name"`
	Payload interface{} `json:"payload"`
}

type pongMsg struct {
	Type string `json:"type"`
}

// Server upgrades requests and tracks every live connection so it can
// be torn down on daemon shutdown, mirroring a Unix-socket daemon's
// listener/conn-set/WaitGroup lifecycle.
type Server struct {
	Registry *registry.Registry
	Handler  QueryHandler
	Upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]struct{}
	wg    sync.WaitGroup
}

// New builds a Server bound to reg, dispatching query messages through
// handler.
func New(reg *registry.Registry, handler QueryHandler) *Server {
	return &Server{
		Registry: reg,
		Handler:  handler,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*conn]struct{}),
	}
}

// ServeHTTP implements http.Handler, so a Server can be mounted
// directly onto an http.ServeMux or used as the handler of an
// http.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{
		id:     uuid.NewString(),
		ws:     ws,
		server: s,
		send:   make(chan interface{}, 32),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.close()
		s.wg.Done()
	}()

	go c.writePump()
	c.readPump()
}

// Close disconnects every tracked connection and waits for their
// goroutines to exit, for graceful daemon shutdown.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
	s.wg.Wait()
}

// conn is one WebSocket connection: a read loop that handles each
// message to completion before reading the next, and a write loop
// draining an outgoing queue under a 5s write deadline.
type conn struct {
	id     string
	server *Server
	ws     *websocket.Conn

	send chan interface{}
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	repo    *registry.RepoContext
	filters []events.Filter
}

func (c *conn) readPump() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", semerr.New(semerr.KindProtocolError, "malformed message"))
			continue
		}
		c.handle(msg)
	}
}

func (c *conn) handle(msg clientMessage) {
	switch msg.Type {
	case "connect":
		c.handleConnect(msg)
	case "subscribe":
		c.handleSubscribe(msg)
	case "unsubscribe":
		c.handleUnsubscribe(msg)
	case "query":
		c.handleQuery(msg)
	case "ping":
		c.enqueue(pongMsg{Type: "pong"})
	default:
		c.sendError(msg.ID, semerr.New(semerr.KindProtocolError, fmt.Sprintf("unknown message type %q", msg.Type)))
	}
}

func (c *conn) handleConnect(msg clientMessage) {
	rc, err := c.server.Registry.GetOrCreate(msg.Directory)
	if err != nil {
		c.sendError(msg.ID, semerr.Wrap(semerr.KindInvalidRequest, "resolving repository", err))
		return
	}
	rc.AddClient()
	rc.Broadcaster.Subscribe(c.sink)

	c.mu.Lock()
	c.repo = rc
	c.mu.Unlock()

	c.enqueue(connectedMsg{
		Type: "connected",
		ConnectionInfo: ConnectionInfo{
			ClientID:   c.id,
			RepoID:     rc.RepoID,
			BaseBranch: rc.BaseBranch,
			Worktrees:  rc.Worktrees,
		},
	})
}

func (c *conn) handleSubscribe(msg clientMessage) {
	var added []string
	c.mu.Lock()
	for _, name := range msg.Events {
		f, err := ParseFilter(name)
		if err != nil {
			c.mu.Unlock()
			c.sendError(msg.ID, semerr.New(semerr.KindInvalidRequest, err.Error()))
			return
		}
		c.filters = append(c.filters, f)
		added = append(added, name)
	}
	c.mu.Unlock()
	c.enqueue(subscribedMsg{Type: "subscribed", Events: added})
}

func (c *conn) handleUnsubscribe(msg clientMessage) {
	var removed []string
	c.mu.Lock()
	for _, name := range msg.Events {
		f, err := ParseFilter(name)
		if err != nil {
			continue
		}
		for i, existing := range c.filters {
			if existing == f {
				c.filters = append(c.filters[:i], c.filters[i+1:]...)
				removed = append(removed, name)
				break
			}
		}
	}
	c.mu.Unlock()
	c.enqueue(unsubscribedMsg{Type: "unsubscribed", Events: removed})
}

func (c *conn) handleQuery(msg clientMessage) {
	c.mu.Lock()
	rc := c.repo
	c.mu.Unlock()
	if rc == nil {
		c.sendError(msg.ID, semerr.New(semerr.KindInvalidRequest, "connect before issuing a query"))
		return
	}
	if c.server.Handler == nil {
		c.sendError(msg.ID, semerr.New(semerr.KindInternal, "no query handler configured"))
		return
	}
	result, err := c.server.Handler(rc, msg.Method, msg.Params)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	c.enqueue(responseMsg{Type: "response", ID: msg.ID, Result: result})
}

// sink is registered with the repo's Broadcaster and fans an event out
// to this connection only if one of its current subscriptions matches.
func (c *conn) sink(ev events.Event) {
	c.mu.Lock()
	filters := c.filters
	c.mu.Unlock()
	for _, f := range filters {
		if f.Matches(ev.Name) {
			c.enqueue(eventMsg{Type: "event", Name: ev.Name, Payload: ev.Payload})
			return
		}
	}
}

func (c *conn) sendError(id string, err error) {
	var coded *semerr.CodedError
	if !errors.As(err, &coded) {
		coded = semerr.Wrap(semerr.KindInternal, "internal error", err)
	}
	c.enqueue(errorMsg{Type: "error", ID: id, Code: semerr.ClientCode(coded.Kind), Message: coded.Message})
}

// enqueue hands msg to the write loop, giving up only once the
// connection is already shutting down.
func (c *conn) enqueue(msg interface{}) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.writeDeadlined(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *conn) writeDeadlined(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			timeoutData, _ := json.Marshal(errorMsg{Type: "error", Code: "timeout", Message: "write deadline exceeded"})
			c.ws.WriteMessage(websocket.TextMessage, timeoutData)
		}
		return err
	}
	return nil
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
		c.mu.Lock()
		rc := c.repo
		c.mu.Unlock()
		if rc != nil {
			rc.RemoveClient()
		}
	})
}

// ParseFilter parses one dotted subscription string from a
// subscribe/unsubscribe message into an events.Filter. "*" and "all"
// subscribe to everything; "worktree:<path>:*" carries the worktree
// path that scopes the filter.
func ParseFilter(s string) (events.Filter, error) {
	if s == "*" || s == "all" {
		return events.Filter{Kind: events.FilterAll}, nil
	}
	scope, rest, found := strings.Cut(s, ":")
	if !found {
		return events.Filter{}, fmt.Errorf("wsserver: unrecognized event filter %q", s)
	}
	switch scope {
	case string(events.FilterBaseBranch), string(events.FilterFeatureBranch),
		string(events.FilterActiveWorktree), string(events.FilterRepo):
		return events.Filter{Kind: events.FilterKind(scope)}, nil
	case string(events.FilterWorktree):
		path, _, _ := strings.Cut(rest, ":")
		if path == "" {
			return events.Filter{}, fmt.Errorf("wsserver: worktree filter %q is missing a path", s)
		}
		return events.Filter{Kind: events.FilterWorktree, WorktreePath: path}, nil
	default:
		return events.Filter{}, fmt.Errorf("wsserver: unrecognized event filter %q", s)
	}
}
