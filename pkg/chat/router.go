package chat

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/bonfire/internal/protocol/packet"
	"github.com/marmos91/bonfire/pkg/metrics"
)

// serve handles the packet at the head of s's buffer. Only a fatal error is
// returned; per-session failures disconnect s.
//
// The packet is decoded from a copy of the buffered bytes and consumed only
// once complete, so serve never waits for the network.
func (r *Room) serve(s *Session) error {
	data, connErr := s.transport.Peek(packet.MaxClientPacketBytes)
	if len(data) == 0 {
		if connErr == nil {
			return nil
		}
		return r.sessionError(s, connErr)
	}

	buf := bytes.NewReader(data)
	tag, _ := packet.ReadTag(buf)
	t := packet.ClientPacketType(tag)

	p, err := packet.DecodeClientPacket(t, buf)
	if packet.Incomplete(err) {
		return r.awaitRemainder(s, err, connErr)
	}
	s.partialSince = time.Time{}
	s.lastActive = r.now
	s.transport.Discard(len(data) - buf.Len())

	if err != nil {
		if errors.Is(err, packet.ErrUnknownPacket) {
			r.metrics.RecordPacket("UNKNOWN")
			if r.cfg.IgnoreUnknownPackets {
				r.log.Warn("ignoring unknown packet", "id", s.id, "tag", tag)
				return nil
			}
		}
		return r.sessionError(s, err)
	}

	r.metrics.RecordPacket(t.String())
	r.log.Debug("packet received", "id", s.id, "type", t)

	resp, err := r.dispatch(s, p)
	if err != nil {
		return r.sessionError(s, err)
	}

	ev := &PacketReceivedEvent{Session: s, Type: t, Packet: p, Response: resp}
	for _, plugin := range r.plugins {
		if plugin.PacketReceived != nil {
			plugin.PacketReceived(r.ctx, ev)
		}
	}
	return nil
}

// awaitRemainder leaves an incomplete packet buffered for a later tick. The
// session is dropped when the connection has ended or the rest did not arrive
// within the transport's read timeout.
func (r *Room) awaitRemainder(s *Session, err, connErr error) error {
	if connErr != nil {
		return r.sessionError(s, err)
	}
	if s.partialSince.IsZero() {
		s.partialSince = r.now
		return nil
	}
	if waited := r.now.Sub(s.partialSince); waited > s.transport.ReadTimeout() {
		return r.sessionError(s, fmt.Errorf("%w (waited %v for the rest)", err, waited))
	}
	return nil
}

func (r *Room) sessionError(s *Session, err error) error {
	if !IsRecoverable(err) {
		r.log.Error("unexpected error", "id", s.id, "conn", s.connID, "err", err)
		return &FatalError{Session: s.id, Err: err}
	}

	reason := disconnectReason(err)
	if reason == metrics.ReasonClientLeft {
		r.log.Info("connection closed by client", "id", s.id, "conn", s.connID)
	} else {
		r.log.Warn("dropping session", "id", s.id, "conn", s.connID, "reason", reason, "err", err)
	}
	r.disconnect(s.id, reason)
	return nil
}

func (r *Room) dispatch(s *Session, p packet.ClientPacket) (packet.ServerPacket, error) {
	switch p := p.(type) {
	case packet.Ping:
		return nil, nil
	case packet.ChangeName:
		return r.rename(s, p.Name)
	case packet.SendMessage:
		return r.route(s, p), nil
	case packet.Disconnect:
		return r.leave(s), nil
	}
	return nil, fmt.Errorf("no handler for %s packet", p.Type())
}

// rename gives s a new name. The first name completes the handshake.
func (r *Room) rename(s *Session, proposed string) (packet.ServerPacket, error) {
	first := !s.Active()
	old := s.name
	if !first {
		r.names.Deregister(old)
	}

	name, ok := r.names.Fix(proposed)
	if !ok {
		r.log.Info("name rejected, using default", "id", s.id, "proposed", proposed)
		name, ok = r.names.Fix(r.cfg.DefaultName)
	}
	if !ok || !r.names.Register(name) {
		return nil, fmt.Errorf("%w for session %d", errNoName, s.id)
	}
	s.name = name

	if first {
		r.log.Info("handshake finished", "id", s.id, "name", name, "conn", s.connID)
		r.finishHandshake(s)
		r.logToAll("%s joined", name)
	} else {
		r.log.Info("session renamed", "id", s.id, "from", old, "to", name)
		r.logToAll("%s renamed to %s", old, name)
	}

	info := packet.UserInfo{ID: s.id, Name: name}
	r.broadcast(info, packet.PublicTarget)
	return info, nil
}

func (r *Room) finishHandshake(s *Session) {
	ev := newHandshakeFinishedEvent(s)
	for _, plugin := range r.plugins {
		if plugin.HandshakeFinished != nil {
			plugin.HandshakeFinished(r.ctx, ev)
		}
	}
	introducePeers(r.ctx, ev)
}

// route delivers a chat message. Public messages go to every other active
// session and into the recall buffer. Private messages go to the target and
// back to the sender.
func (r *Room) route(s *Session, p packet.SendMessage) packet.ServerPacket {
	if !s.Active() {
		r.log.Debug("ignoring message before handshake", "id", s.id)
		return nil
	}
	if !s.limiter.AllowAt(r.now) {
		r.log.Warn("message dropped by flood control", "id", s.id, "name", s.name)
		r.metrics.RecordMessageThrottled()
		return nil
	}

	msg := packet.ReceiveMessage{
		Target:    p.Target,
		Author:    s.id,
		Timestamp: packet.Timestamp(r.now),
		Body:      p.Body,
	}

	if p.Public() {
		r.recall.Push(s.name, msg)
		r.broadcast(msg, s.id)
		r.metrics.RecordMessage("public")
		return msg
	}

	r.send(s, msg)
	if p.Target != s.id {
		if target, ok := r.sessions.Get(p.Target); ok && target.Active() {
			r.send(target, msg)
		} else {
			r.log.Warn("private message to unknown user", "id", s.id, "target", p.Target)
		}
	}
	r.metrics.RecordMessage("private")
	return msg
}

// leave handles an explicit disconnect request.
func (r *Room) leave(s *Session) packet.ServerPacket {
	var msg packet.ServerPacket
	if s.Active() {
		msg = r.logToAll("%s left", s.name)
	}
	r.disconnect(s.id, metrics.ReasonClientLeft)
	return msg
}
