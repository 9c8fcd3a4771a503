// Package ws serves battlefield previews over a websocket: the client sends
// GENERATE and receives one RESULT per request.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"skirmish.dev/internal/protocol"
	"skirmish.dev/internal/sim/battle/deploy"
	"skirmish.dev/internal/sim/mission"
)

// RecordFunc persists a finished run.
type RecordFunc func(runID string, req mission.Request, res *mission.Result, runErr error) error

type Config struct {
	// MaxInFlight bounds concurrent generations across all connections.
	MaxInFlight int
	// DefaultRoster is used when a GENERATE carries no roster.
	DefaultRoster deploy.Roster
	NewRunID      func() string
	Record        RecordFunc
}

type Server struct {
	runner *mission.Runner
	cfg    Config
	log    *log.Logger

	slots    chan struct{}
	upgrader websocket.Upgrader
}

func NewServer(runner *mission.Runner, cfg Config, logger *log.Logger) *Server {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	return &Server{
		runner: runner,
		cfg:    cfg,
		log:    logger,
		slots:  make(chan struct{}, cfg.MaxInFlight),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		out := make(chan protocol.ResultMsg, 8)

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-out:
					if err := writeJSON(conn, msg); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			msg, errInfo := decodeGenerate(raw)
			if errInfo != nil {
				s.send(ctx, out, protocol.ResultMsg{RequestID: msg.RequestID, Error: errInfo})
				continue
			}
			select {
			case s.slots <- struct{}{}:
			default:
				s.send(ctx, out, protocol.ResultMsg{RequestID: msg.RequestID, Error: &protocol.ErrorInfo{
					Code: protocol.ErrBusy, Message: "too many generations in flight",
				}})
				continue
			}
			go func() {
				defer func() { <-s.slots }()
				s.send(ctx, out, s.generate(msg))
			}()
		}
		cancel()
		<-done
	}
}

func (s *Server) send(ctx context.Context, out chan<- protocol.ResultMsg, msg protocol.ResultMsg) {
	msg.Type = protocol.TypeResult
	msg.ProtocolVersion = protocol.Version
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}

func decodeGenerate(raw []byte) (protocol.GenerateMsg, *protocol.ErrorInfo) {
	var msg protocol.GenerateMsg
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return msg, &protocol.ErrorInfo{Code: protocol.ErrProtoBadRequest, Message: "bad json"}
	}
	if base.Type != protocol.TypeGenerate {
		return msg, &protocol.ErrorInfo{Code: protocol.ErrProtoBadRequest, Message: "expected GENERATE"}
	}
	_ = json.Unmarshal(raw, &msg)
	if base.ProtocolVersion != protocol.Version {
		return msg, &protocol.ErrorInfo{Code: protocol.ErrProtoBadRequest, Message: "bad protocol_version"}
	}
	if err := protocol.Validate(protocol.TypeGenerate, raw); err != nil {
		return msg, &protocol.ErrorInfo{Code: protocol.ErrBadRequest, Message: err.Error()}
	}
	return msg, nil
}

func (s *Server) generate(msg protocol.GenerateMsg) protocol.ResultMsg {
	req := mission.Request{
		Deployment: msg.Deployment,
		Terrain:    msg.Terrain,
		Craft:      msg.Craft,
		UFO:        msg.UFO,
		Seed:       msg.Seed,
		Month:      msg.Month,
		Mitigation: msg.Mitigation,
		Roster:     s.cfg.DefaultRoster,
		Researched: msg.Researched,
	}
	if msg.Roster != nil {
		req.Roster = *msg.Roster
	}
	runID := ""
	if s.cfg.NewRunID != nil {
		runID = s.cfg.NewRunID()
	}

	start := time.Now()
	res, err := s.runner.Run(req)
	if s.log != nil {
		s.log.Printf("generate deployment=%s seed=%d run=%s took=%s err=%v", req.Deployment, req.Seed, runID, time.Since(start).Round(time.Millisecond), err)
	}
	if s.cfg.Record != nil {
		if rerr := s.cfg.Record(runID, req, res, err); rerr != nil && s.log != nil {
			s.log.Printf("record run %s: %v", runID, rerr)
		}
	}
	out := Summarize(res, err)
	out.RequestID = msg.RequestID
	out.RunID = runID
	return out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
