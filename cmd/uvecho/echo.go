package main

import (
	"go.uber.org/zap"

	"github.com/wippyai/uvcompat"
	"github.com/wippyai/uvcompat/resource"
	"github.com/wippyai/uvcompat/status"
	"github.com/wippyai/uvcompat/stream"
	"github.com/wippyai/uvcompat/tcp"
)

// echoServer writes every chunk it reads back to the sender. All fields are
// owned by the loop goroutine.
type echoServer struct {
	rt     *uvcompat.Runtime
	srv    *tcp.TCP
	logger *zap.Logger

	addr     tcp.SockAddr
	accepted int
	failed   int
	echoed   uint64
}

// stats is a snapshot of the server taken on the loop.
type stats struct {
	Address     string
	Port        int
	Backlog     int
	Connections int
	Accepted    int
	Failed      int
	Echoed      uint64
	Handles     map[resource.Provider]int
}

// listenEcho starts an echo server. Call it before Run or on the loop.
func listenEcho(rt *uvcompat.Runtime, cfg config) (*echoServer, error) {
	e := &echoServer{
		rt:     rt,
		logger: rt.Logger().Named("echo"),
	}
	e.srv = rt.NewTCP(tcp.Server)
	e.srv.OnConnection = e.onConnection

	bind := e.srv.Bind
	if cfg.IPv6 {
		bind = func(addr string, port int) status.Code { return e.srv.Bind6(addr, port, 0) }
	}
	if code := bind(cfg.Host, cfg.Port); code != status.OK {
		e.srv.Close(nil)
		return nil, code.Err()
	}
	if code := e.srv.Listen(cfg.Backlog); code != status.OK {
		e.srv.Close(nil)
		return nil, code.Err()
	}
	e.srv.GetSockName(&e.addr)
	e.logger.Info("listening",
		zap.String("address", e.addr.Address),
		zap.Int("port", e.addr.Port),
		zap.Int("backlog", e.srv.Backlog()))
	return e, nil
}

func (e *echoServer) onConnection(code status.Code, conn *tcp.TCP) {
	if code != status.OK {
		e.failed++
		e.logger.Warn("accept failed", zap.Stringer("status", code))
		return
	}
	e.accepted++

	var peer tcp.SockAddr
	conn.GetPeerName(&peer)
	log := conn.Logger().With(zap.String("peer", peer.Address), zap.Int("peer_port", peer.Port))
	log.Debug("connection accepted")

	conn.SetNoDelay(true)
	conn.SetReadCallback(func(buf []byte, nread int) bool {
		if nread < 0 {
			e.hangUp(conn, status.Code(nread), log)
			return false
		}
		out := append([]byte(nil), buf...)
		req := stream.NewWriteRequest(func(code status.Code) {
			if code != status.OK {
				log.Debug("echo write failed", zap.Stringer("status", code))
				conn.Close(nil)
				return
			}
			e.echoed += uint64(len(out))
		})
		if code := conn.WriteBuffer(req, out); code != status.OK {
			conn.Close(nil)
			return false
		}
		return true
	})
	conn.ReadStart()
}

// hangUp finishes a connection once its peer stopped sending: pending echoes
// are flushed by Shutdown before the handle closes.
func (e *echoServer) hangUp(conn *tcp.TCP, code status.Code, log *zap.Logger) {
	if code != status.EOF {
		log.Debug("read failed", zap.Stringer("status", code))
		conn.Close(nil)
		return
	}
	req := stream.NewShutdownRequest(func(status.Code) {
		conn.Close(func() { log.Debug("connection closed") })
	})
	if conn.Shutdown(req) != status.OK {
		conn.Close(nil)
	}
}

func (e *echoServer) snapshot() stats {
	s := stats{
		Address:     e.addr.Address,
		Port:        e.addr.Port,
		Backlog:     e.srv.Backlog(),
		Connections: e.srv.Connections(),
		Accepted:    e.accepted,
		Failed:      e.failed,
		Echoed:      e.echoed,
		Handles:     make(map[resource.Provider]int),
	}
	e.rt.Table().Each(func(_ resource.ID, p resource.Provider, _ any) bool {
		s.Handles[p]++
		return true
	})
	return s
}
