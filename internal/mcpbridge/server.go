package mcpbridge

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chibi-cli/chibi/internal/logx"
)

// Server is the bridge's TCP listener: one upstream pool, one summary
// cache, and an idle-timeout self-exit.
type Server struct {
	ChibiHome   string
	Cache       *SummaryCache
	IdleTimeout time.Duration

	mu        sync.RWMutex
	upstreams map[string]*Upstream

	lastConn atomic.Int64 // unix nanos of the last served connection
}

// NewServer builds a Server with all configured upstreams pre-dialed.
func NewServer(ctx context.Context, chibiHome string, cache *SummaryCache, configs []UpstreamConfig, idleTimeout time.Duration) (*Server, error) {
	s := &Server{
		ChibiHome:   chibiHome,
		Cache:       cache,
		IdleTimeout: idleTimeout,
		upstreams:   map[string]*Upstream{},
	}
	s.lastConn.Store(time.Now().UnixNano())

	for _, cfg := range configs {
		u, err := Dial(ctx, cfg)
		if err != nil {
			logx.WarnCF("mcpbridge", "failed to dial upstream, skipping", map[string]any{"server": cfg.Name, "error": err.Error()})
			continue
		}
		s.upstreams[cfg.Name] = u
	}
	return s, nil
}

// AllToolDescriptors lists every tool across every dialed upstream, used as
// the Fetch callback for a SummarizeJob.
func (s *Server) AllToolDescriptors() []ToolDescriptor {
	ctx := context.Background()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []ToolDescriptor
	for _, u := range s.upstreams {
		descs, err := u.ListTools(ctx)
		if err != nil {
			continue
		}
		all = append(all, descs...)
	}
	return all
}

// Listen binds a TCP listener on an OS-chosen loopback port, publishes the
// lockfile, and serves until ctx is cancelled or the idle timeout elapses.
func (s *Server) Listen(ctx context.Context) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("mcpbridge: listen: %w", err)
	}
	defer ln.Close()

	address := ln.Addr().String()
	if err := Publish(s.ChibiHome, address); err != nil {
		return fmt.Errorf("mcpbridge: publish lockfile: %w", err)
	}
	defer Remove(s.ChibiHome)

	go s.watchIdle(ctx, ln)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("mcpbridge: accept: %w", err)
		}
		s.lastConn.Store(time.Now().UnixNano())
		go ServeConn(conn, s.handle)
	}
}

func (s *Server) watchIdle(ctx context.Context, ln net.Listener) {
	if s.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(s.IdleTimeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, s.lastConn.Load())
			if time.Since(last) >= s.IdleTimeout {
				logx.InfoCF("mcpbridge", "idle timeout reached, shutting down", map[string]any{"idle_timeout": s.IdleTimeout.String()})
				ln.Close()
				return
			}
		}
	}
}

func (s *Server) handle(req Request) Response {
	switch req.Op {
	case "list_tools":
		descs := s.AllToolDescriptors()
		return Response{OK: true, Tools: s.Cache.ApplyTo(descs)}

	case "call_tool":
		u, ok := s.upstream(req.Server)
		if !ok {
			return Response{OK: false, Error: fmt.Sprintf("unknown server %q", req.Server)}
		}
		text, err := u.CallTool(context.Background(), req.Tool, req.Args)
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true, Result: text}

	case "get_schema":
		u, ok := s.upstream(req.Server)
		if !ok {
			return Response{OK: false, Error: fmt.Sprintf("unknown server %q", req.Server)}
		}
		schema, err := u.GetSchema(context.Background(), req.Tool)
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true, Schema: schema}

	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown op %q", req.Op)}
	}
}

func (s *Server) upstream(name string) (*Upstream, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.upstreams[name]
	return u, ok
}

// Close tears down every dialed upstream.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.upstreams {
		_ = u.Close()
	}
}
