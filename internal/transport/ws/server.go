// Package ws is the websocket transport for a hosted match: it performs
// the HELLO/WELCOME handshake, feeds decoded peer traffic into the battle
// loop's channels, and fans outbound digests and faults to every peer.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"steelfront.dev/internal/protocol"
	"steelfront.dev/internal/sim/battle"
)

type Server struct {
	battle *battle.Battle
	log    *log.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[string]chan []byte
}

func NewServer(b *battle.Battle, logger *log.Logger) *Server {
	return &Server{
		battle: b,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		peers: map[string]chan []byte{},
	}
}

// Broadcast fans the battle's outbound digests and faults to every
// connected peer until ctx is done. Run it once, alongside battle.Run.
func (s *Server) Broadcast(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.battle.Digests():
			s.fanOut(protocol.DigestMsg{
				Type:            protocol.TypeDigest,
				ProtocolVersion: protocol.Version,
				Tick:            d.Tick,
				Digest:          d.Digest,
			})
		case f := <-s.battle.Faults():
			s.fanOut(protocol.FaultMsg{
				Type:            protocol.TypeFault,
				ProtocolVersion: protocol.Version,
				Code:            f.Code,
				Tick:            f.Tick,
				Message:         f.Msg,
			})
		}
	}
}

func (s *Server) fanOut(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, out := range s.peers {
		select {
		case out <- b:
		default:
			s.log.Printf("peer %s send queue full, dropping", id)
		}
	}
}

func (s *Server) attach(playerID string, out chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.peers[playerID]; dup {
		return false
	}
	s.peers[playerID] = out
	return true
}

func (s *Server) detach(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, playerID)
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, out := s.handshake(conn)
		if playerID == "" {
			return
		}
		defer s.detach(playerID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeCmd:
				var cm protocol.CmdMsg
				if err := json.Unmarshal(msg, &cm); err != nil || cm.ProtocolVersion != protocol.Version {
					continue
				}
				resp := make(chan []error, 1)
				s.battle.Inbox() <- battle.SubmitEnvelope{
					PlayerID: playerID,
					Commands: cm.Commands,
					Resp:     resp,
				}
				for i, err := range <-resp {
					if err != nil {
						s.log.Printf("peer %s command %d rejected: %v", playerID, i, err)
					}
				}

			case protocol.TypeDone:
				var dm protocol.DoneMsg
				if err := json.Unmarshal(msg, &dm); err != nil || dm.ProtocolVersion != protocol.Version {
					continue
				}
				s.battle.Marks() <- battle.CompletenessMark{PlayerID: playerID, Tick: dm.Tick}

			case protocol.TypeDigest:
				var gm protocol.DigestMsg
				if err := json.Unmarshal(msg, &gm); err != nil || gm.ProtocolVersion != protocol.Version {
					continue
				}
				s.battle.RemoteSamples() <- battle.PeerSample{
					PeerID: playerID,
					Sample: battle.Sample{Tick: gm.Tick, Digest: gm.Digest},
				}
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (playerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", nil
	}
	if hello.MatchID != "" && hello.MatchID != s.battle.MatchID() {
		closeWith(conn, protocol.ErrUnknownMatch)
		return "", nil
	}
	params := s.battle.Params()
	inRoster := false
	for _, p := range params.Roster {
		if p == hello.PlayerID {
			inRoster = true
			break
		}
	}
	if !inRoster {
		closeWith(conn, "player not in roster")
		return "", nil
	}

	out = make(chan []byte, 64)
	if !s.attach(hello.PlayerID, out) {
		closeWith(conn, "player already connected")
		return "", nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		MatchID:         s.battle.MatchID(),
		PlayerID:        hello.PlayerID,
		Params:          params,
		Catalogs:        s.battle.CatalogDigests(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.detach(hello.PlayerID)
		return "", nil
	}
	return hello.PlayerID, out
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
