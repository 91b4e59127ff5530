package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coreshare-backend/internal/chat"
	"coreshare-backend/internal/logger"
)

type ChatAction string

const (
	ChatActionNone          ChatAction = ""
	ChatActionCreateListing ChatAction = "create_listing"
	ChatActionStopRental    ChatAction = "stop_rental"
	ChatActionToggleTheme   ChatAction = "toggle_theme"
)

// ChatMessage is one user turn. Action, when set, names the marketplace operation the
// assistant should carry out; its parameters travel in Listing or RentalID.
type ChatMessage struct {
	Content  string     `json:"content"`
	Action   ChatAction `json:"action,omitempty"`
	Listing  *GpuInput  `json:"listing,omitempty"`
	RentalID int32      `json:"rentalId,omitempty"`
}

type ChatSessionView struct {
	ID        string         `json:"id"`
	Theme     chat.Theme     `json:"theme"`
	Messages  []chat.Message `json:"messages"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

type ChatReply struct {
	SessionID string     `json:"sessionId"`
	Reply     string     `json:"reply"`
	Action    ChatAction `json:"action,omitempty"`
	Result    any        `json:"result,omitempty"`
	Theme     chat.Theme `json:"theme"`
}

type chatService struct {
	store   chat.Store
	gpus    GpuService
	rentals RentalService
	ttl     time.Duration
}

func NewChatService(store chat.Store, gpus GpuService, rentals RentalService, ttl time.Duration) ChatService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &chatService{
		store:   store,
		gpus:    gpus,
		rentals: rentals,
		ttl:     ttl,
	}
}

func (s *chatService) CreateSession(ctx context.Context, userID int32) (*ChatSessionView, error) {
	sess := s.store.Create(userID)
	logger.Debug("Chat session created", "sessionID", sess.ID, "userID", userID)
	return s.view(sess), nil
}

func (s *chatService) SendMessage(ctx context.Context, userID int32, sessionID string, msg ChatMessage) (*ChatReply, error) {
	sess, err := s.session(userID, sessionID)
	if err != nil {
		return nil, err
	}
	msg.Content = strings.TrimSpace(msg.Content)
	if msg.Content == "" && msg.Action == ChatActionNone {
		return nil, invalidField("content", "is required")
	}

	reply := &ChatReply{SessionID: sess.ID, Action: msg.Action, Theme: sess.Theme}
	switch msg.Action {
	case ChatActionNone:
		reply.Reply = "I can list a GPU for you, stop a running rental, or switch the theme."
	case ChatActionCreateListing:
		if msg.Listing == nil {
			return nil, invalidField("listing", "is required for create_listing")
		}
		gpu, err := s.gpus.CreateGpu(ctx, userID, *msg.Listing)
		if err != nil {
			return nil, err
		}
		reply.Result = gpu
		reply.Reply = fmt.Sprintf("Your %s is now listed at %.2f per hour.", gpu.Name, gpu.PricePerHour)
	case ChatActionStopRental:
		if msg.RentalID <= 0 {
			return nil, invalidField("rentalId", "is required for stop_rental")
		}
		rental, err := s.rentals.StopRental(ctx, userID, msg.RentalID)
		if err != nil {
			return nil, err
		}
		reply.Result = rental
		reply.Reply = fmt.Sprintf("Rental %d has been stopped. Total cost: %.2f.", rental.ID, derefCost(rental.TotalCost))
	case ChatActionToggleTheme:
		reply.Theme = sess.Theme.Toggle()
		reply.Reply = fmt.Sprintf("Switched to the %s theme.", reply.Theme)
	default:
		return nil, invalidField("action", "must be one of create_listing, stop_rental, toggle_theme")
	}

	now := time.Now()
	_, err = s.store.Update(sess.ID, func(stored *chat.Session) {
		stored.Theme = reply.Theme
		if msg.Content != "" {
			stored.Messages = append(stored.Messages, chat.Message{Role: chat.RoleUser, Content: msg.Content, CreatedAt: now})
		}
		stored.Messages = append(stored.Messages, chat.Message{Role: chat.RoleAssistant, Content: reply.Reply, CreatedAt: now})
	})
	if err != nil {
		// expired between lookup and update; the action itself already happened
		logger.Warn("Chat session vanished while replying", "sessionID", sess.ID, "error", err)
	}
	return reply, nil
}

// ExpireSessions drops sessions idle for longer than the configured TTL.
func (s *chatService) ExpireSessions(now time.Time) int {
	return s.store.Expire(now.Add(-s.ttl))
}

func (s *chatService) session(userID int32, sessionID string) (*chat.Session, error) {
	sess, err := s.store.Get(sessionID)
	if errors.Is(err, chat.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: chat session %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, fmt.Errorf("%w: chat session %s", ErrNotFound, sessionID)
	}
	return sess, nil
}

func (s *chatService) view(sess *chat.Session) *ChatSessionView {
	return &ChatSessionView{
		ID:        sess.ID,
		Theme:     sess.Theme,
		Messages:  sess.Messages,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.LastSeen.Add(s.ttl),
	}
}

func derefCost(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
