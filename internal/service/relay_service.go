package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/relay"
	"github.com/astrolink/consult-rtc/internal/repository"
	"github.com/astrolink/consult-rtc/lib/logger/sl"
)

var ErrIdentityRequired = errors.New("participant identity is required")

type liveRoom struct {
	hostID  string
	session *domain.LiveSession
	viewers map[string]struct{}
}

type membership struct {
	room string
	role domain.LiveRole
}

// RelayService routes validated events between attached participants, keyed
// by identity. Delivery is best effort: a missing or slow target drops the
// event, it never fails the sender. Alongside routing it keeps the
// consultation and live-session records current.
type RelayService struct {
	log           *slog.Logger
	consultations repository.ConsultationRepository
	sessions      repository.LiveSessionRepository
	chats         repository.ChatRepository
	presence      repository.PresenceStore

	mu        sync.RWMutex
	endpoints map[string]*relay.Endpoint
	rooms     map[string]*liveRoom
	members   map[string]membership
	calls     map[string]*domain.Consultation
}

func NewRelayService(
	consultations repository.ConsultationRepository,
	sessions repository.LiveSessionRepository,
	chats repository.ChatRepository,
	presence repository.PresenceStore,
	log *slog.Logger,
) *RelayService {
	if log == nil {
		log = slog.Default()
	}
	return &RelayService{
		log:           log,
		consultations: consultations,
		sessions:      sessions,
		chats:         chats,
		presence:      presence,
		endpoints:     make(map[string]*relay.Endpoint),
		rooms:         make(map[string]*liveRoom),
		members:       make(map[string]membership),
		calls:         make(map[string]*domain.Consultation),
	}
}

// Attach registers a participant and returns its endpoint. A second attach
// for the same identity replaces the first, closing it with the usual leave
// side effects.
func (s *RelayService) Attach(ctx context.Context, participantID string) (*relay.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if participantID == "" {
		return nil, ErrIdentityRequired
	}

	var ep *relay.Endpoint
	ep = relay.NewEndpoint(participantID, s.route, func(id string) { s.handleDetach(id, ep) })

	// Swap in one critical section so racing attaches for the same identity
	// always displace each other; the loser is closed after unlocking.
	s.mu.Lock()
	prior := s.endpoints[participantID]
	s.endpoints[participantID] = ep
	s.mu.Unlock()

	if prior != nil {
		prior.Close()
	}

	ep.MarkReady()
	ep.Enqueue(domain.Event{Type: domain.EventAttached, To: participantID})

	s.log.Info("participant attached", slog.String("participant_id", participantID))
	return ep, nil
}

func (s *RelayService) route(from string, ev domain.Event) error {
	ev.From = from
	if err := ev.Validate(); err != nil {
		s.log.Info("event rejected", slog.String("participant_id", from), sl.Err(err))
		return err
	}

	switch ev.Type {
	case domain.EventCallRequest:
		s.routeCallRequest(ev)
	case domain.EventCallAnswer:
		s.routeCallAnswer(ev)
	case domain.EventCallEnd:
		s.routeCallEnd(ev)
	case domain.EventICECandidate, domain.EventLiveOffer, domain.EventLiveAnswer:
		s.sendTo(ev.To, ev)
	case domain.EventLiveJoin:
		if ev.Role == domain.LiveRoleHost {
			s.joinAsHost(ev)
		} else {
			s.joinAsViewer(ev)
		}
	case domain.EventLiveEnded:
		// Only the host tears down its own room.
		s.endRoom(ev.From)
	case domain.EventChat:
		s.routeChat(ev)
	case domain.EventViewerLeft:
		s.leaveRoom(ev.From)
	case domain.EventViewerCount, domain.EventViewerJoined, domain.EventAttached:
		// Server-authoritative types; clients cannot publish them.
	}

	return nil
}

func (s *RelayService) routeCallRequest(ev domain.Event) {
	ctx := context.Background()

	record := domain.NewConsultation(ev.From, ev.To, ev.Kind)

	s.mu.Lock()
	prior := s.calls[pairKey(ev.From, ev.To)]
	s.calls[pairKey(ev.From, ev.To)] = record
	s.mu.Unlock()

	if prior != nil {
		// A re-request for the same pair supersedes the earlier attempt; the
		// displaced record must not stay ringing forever.
		prior.MarkEnded()
		if err := s.consultations.Update(ctx, prior); err != nil {
			s.log.Error("failed to update consultation", sl.Err(err))
		}
	}

	if err := s.consultations.Create(ctx, record); err != nil {
		s.log.Error("failed to save consultation", sl.Err(err))
	}

	if !s.sendTo(ev.To, ev) {
		// Callee is not attached: end the call right away so the caller does
		// not ring into the void.
		s.finishCall(ev.From, ev.To)
		s.sendTo(ev.From, domain.Event{Type: domain.EventCallEnd, From: ev.To, To: ev.From})
	}
}

func (s *RelayService) routeCallAnswer(ev domain.Event) {
	s.mu.Lock()
	record := s.calls[pairKey(ev.From, ev.To)]
	s.mu.Unlock()

	if record != nil {
		record.MarkAnswered()
		if err := s.consultations.Update(context.Background(), record); err != nil {
			s.log.Error("failed to update consultation", sl.Err(err))
		}
	}

	s.sendTo(ev.To, ev)
}

func (s *RelayService) routeCallEnd(ev domain.Event) {
	s.finishCall(ev.From, ev.To)
	s.sendTo(ev.To, ev)
}

func (s *RelayService) finishCall(a, b string) {
	s.mu.Lock()
	key := pairKey(a, b)
	record := s.calls[key]
	delete(s.calls, key)
	s.mu.Unlock()

	if record == nil {
		return
	}

	record.MarkEnded()
	if err := s.consultations.Update(context.Background(), record); err != nil {
		s.log.Error("failed to update consultation", sl.Err(err))
	}
}

func (s *RelayService) joinAsHost(ev domain.Event) {
	const op = "service.relay.joinAsHost"
	log := s.log.With(slog.String("op", op), slog.String("host_id", ev.From))

	if ev.Room != ev.From {
		log.Info("host join rejected: room is not own identity")
		return
	}

	s.mu.Lock()
	if _, ok := s.rooms[ev.From]; ok {
		s.mu.Unlock()
		return
	}
	session := domain.NewLiveSession(ev.From, "")
	s.rooms[ev.From] = &liveRoom{
		hostID:  ev.From,
		session: session,
		viewers: make(map[string]struct{}),
	}
	s.members[ev.From] = membership{room: ev.From, role: domain.LiveRoleHost}
	s.mu.Unlock()

	if err := s.sessions.Create(context.Background(), session); err != nil {
		log.Error("failed to save live session", sl.Err(err))
	}

	log.Info("live room opened")
}

func (s *RelayService) joinAsViewer(ev domain.Event) {
	const op = "service.relay.joinAsViewer"
	log := s.log.With(
		slog.String("op", op),
		slog.String("viewer_id", ev.From),
		slog.String("room", ev.Room),
	)

	s.mu.Lock()
	room, ok := s.rooms[ev.Room]
	if !ok {
		s.mu.Unlock()
		// Stream is not live (anymore); tell the viewer instead of leaving it
		// waiting for an offer that will never come.
		s.sendTo(ev.From, domain.Event{Type: domain.EventLiveEnded, Room: ev.Room, To: ev.From})
		return
	}
	room.viewers[ev.From] = struct{}{}
	s.members[ev.From] = membership{room: ev.Room, role: domain.LiveRoleViewer}
	session := room.session
	hostID := room.hostID
	s.mu.Unlock()

	ctx := context.Background()
	count, err := s.presence.AddViewer(ctx, ev.Room, ev.From)
	if err != nil {
		log.Error("presence update failed", sl.Err(err))
	}

	session.ObserveViewers(count)
	if err := s.sessions.Update(ctx, session); err != nil {
		log.Error("failed to update live session", sl.Err(err))
	}

	s.sendTo(hostID, domain.Event{Type: domain.EventViewerJoined, From: ev.From, To: hostID})
	s.broadcastViewerCount(ev.Room, count)

	log.Info("viewer joined", slog.Int("viewer_count", count))
}

func (s *RelayService) routeChat(ev domain.Event) {
	s.mu.RLock()
	room, ok := s.rooms[ev.Room]
	s.mu.RUnlock()
	if !ok {
		return
	}

	msg := domain.NewChatMessage(ev.Room, ev.From, ev.Chat.Sender, strings.TrimSpace(ev.Chat.Text))
	if parsed, err := uuid.Parse(ev.Chat.ID); err == nil {
		msg.ID = parsed
	}
	if err := s.chats.Save(context.Background(), msg); err != nil {
		s.log.Error("failed to save chat message", sl.Err(err))
	}

	// Echoed to everyone, sender included; clients dedupe by the payload id.
	s.broadcastRoom(room, ev, "")
}

func (s *RelayService) leaveRoom(participantID string) {
	s.mu.Lock()
	member, ok := s.members[participantID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if member.role == domain.LiveRoleHost {
		s.mu.Unlock()
		s.endRoom(participantID)
		return
	}

	delete(s.members, participantID)
	room, ok := s.rooms[member.room]
	if ok {
		delete(room.viewers, participantID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	count, err := s.presence.RemoveViewer(context.Background(), member.room, participantID)
	if err != nil {
		s.log.Error("presence update failed", sl.Err(err))
	}

	s.sendTo(room.hostID, domain.Event{Type: domain.EventViewerLeft, From: participantID, To: room.hostID})
	s.broadcastViewerCount(member.room, count)
}

func (s *RelayService) endRoom(hostID string) {
	s.mu.Lock()
	room, ok := s.rooms[hostID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.rooms, hostID)
	delete(s.members, hostID)
	viewers := make([]string, 0, len(room.viewers))
	for id := range room.viewers {
		viewers = append(viewers, id)
		delete(s.members, id)
	}
	s.mu.Unlock()

	for _, id := range viewers {
		s.sendTo(id, domain.Event{Type: domain.EventLiveEnded, Room: hostID, To: id})
	}

	ctx := context.Background()
	room.session.MarkEnded()
	if err := s.sessions.Update(ctx, room.session); err != nil {
		s.log.Error("failed to update live session", sl.Err(err))
	}
	if err := s.presence.ClearRoom(ctx, hostID); err != nil {
		s.log.Error("presence cleanup failed", sl.Err(err))
	}

	s.log.Info("live room closed", slog.String("host_id", hostID))
}

// handleDetach runs when an endpoint closes: the participant leaves whatever
// room it was in, and any call it was part of is ended towards the peer.
func (s *RelayService) handleDetach(participantID string, ep *relay.Endpoint) {
	// Collect under the lock, persist after: an Update here can be a database
	// round-trip and must not stall routing.
	s.mu.Lock()
	if s.endpoints[participantID] == ep {
		delete(s.endpoints, participantID)
	}

	var peers []string
	var ended []*domain.Consultation
	for key, record := range s.calls {
		if record.CallerID == participantID || record.CalleeID == participantID {
			delete(s.calls, key)
			peer := record.CallerID
			if peer == participantID {
				peer = record.CalleeID
			}
			peers = append(peers, peer)
			ended = append(ended, record)
		}
	}
	s.mu.Unlock()

	for _, record := range ended {
		record.MarkEnded()
		if err := s.consultations.Update(context.Background(), record); err != nil {
			s.log.Error("failed to update consultation", sl.Err(err))
		}
	}
	for _, peer := range peers {
		s.sendTo(peer, domain.Event{Type: domain.EventCallEnd, From: participantID, To: peer})
	}

	s.leaveRoom(participantID)

	s.log.Info("participant detached", slog.String("participant_id", participantID))
}

func (s *RelayService) sendTo(participantID string, ev domain.Event) bool {
	s.mu.RLock()
	ep := s.endpoints[participantID]
	s.mu.RUnlock()

	if ep == nil {
		s.log.Debug("target not attached", slog.String("participant_id", participantID), slog.String("type", string(ev.Type)))
		return false
	}
	if !ep.Enqueue(ev) {
		s.log.Debug("dropping event", slog.String("participant_id", participantID), slog.String("type", string(ev.Type)))
		return false
	}
	return true
}

func (s *RelayService) broadcastRoom(room *liveRoom, ev domain.Event, exclude string) {
	s.mu.RLock()
	targets := make([]string, 0, len(room.viewers)+1)
	if room.hostID != exclude {
		targets = append(targets, room.hostID)
	}
	for id := range room.viewers {
		if id != exclude {
			targets = append(targets, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range targets {
		s.sendTo(id, ev)
	}
}

func (s *RelayService) broadcastViewerCount(roomID string, count int) {
	s.mu.RLock()
	room, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	s.broadcastRoom(room, domain.Event{
		Type:  domain.EventViewerCount,
		Room:  roomID,
		Count: count,
	}, "")
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
