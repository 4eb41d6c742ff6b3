// Package friends manages friend edges and the per-user friend feed.
package friends

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mcoot/tictactoe-live/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-live/internal/events"
	"github.com/mcoot/tictactoe-live/internal/keylock"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage"
)

const (
	// MinSearchLength is the shortest query that runs a search
	MinSearchLength = 2
	// SearchLimit caps search results
	SearchLimit = 10
)

// Presence answers whether a user is connected
type Presence interface {
	IsOnline(userID model.UserID) bool
}

type pairKey struct {
	lo, hi model.UserID
}

func pairOf(a, b model.UserID) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// Service owns friend edges
// Mutations are serialized per unordered user pair
type Service struct {
	storage   storage.Storage
	presence  Presence
	publisher events.Publisher
	clock     clock.Clock
	logger    *slog.Logger
	locks     *keylock.Map[pairKey]
}

// New creates a new friends service
func New(
	storage storage.Storage,
	presence Presence,
	publisher events.Publisher,
	clock clock.Clock,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:   storage,
		presence:  presence,
		publisher: publisher,
		clock:     clock,
		logger:    logger.With(slog.String("component", "friends")),
		locks:     keylock.New[pairKey](),
	}
}

// SendRequest creates a pending edge from requester to addressee
// A declined edge between the pair is discarded so the request can be sent again
func (s *Service) SendRequest(ctx context.Context, requester model.User, addresseeID model.UserID) (*model.FriendEdge, error) {
	if requester.ID == addresseeID {
		return nil, model.ErrCannotFriendSelf
	}
	if _, err := s.storage.GetUser(ctx, addresseeID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(pairOf(requester.ID, addresseeID))
	defer unlock()

	existing, err := s.storage.FindFriendEdge(ctx, requester.ID, addresseeID)
	switch {
	case errors.Is(err, model.ErrRequestNotFound):
	case err != nil:
		return nil, err
	case existing.Status == model.FriendStatusAccepted:
		return nil, model.ErrAlreadyFriends
	case existing.Status == model.FriendStatusPending:
		return nil, model.ErrRequestAlreadyPending
	default:
		if err := s.storage.DeleteFriendEdge(ctx, existing.ID); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	edge := &model.FriendEdge{
		ID:          model.FriendRequestID(uuid.NewString()),
		RequesterID: requester.ID,
		AddresseeID: addresseeID,
		Status:      model.FriendStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.storage.SaveFriendEdge(ctx, edge); err != nil {
		return nil, err
	}

	s.publisher.PublishToUser(addresseeID, model.Event{
		Type: model.EventFriendRequestReceived,
		Payload: model.FriendRequestReceivedPayload{
			RequestID:         edge.ID,
			RequesterID:       requester.ID,
			RequesterUsername: requester.Username,
		},
	})

	s.logger.Info("friend request sent",
		slog.String("request_id", string(edge.ID)),
		slog.String("user_id", string(requester.ID)),
		slog.String("addressee_id", string(addresseeID)),
	)
	return edge, nil
}

// Respond lets the addressee accept or decline a pending request
func (s *Service) Respond(ctx context.Context, addressee model.User, requestID model.FriendRequestID, status model.FriendStatus) (*model.FriendEdge, error) {
	if status != model.FriendStatusAccepted && status != model.FriendStatusDeclined {
		return nil, model.ErrInvalidResponse
	}

	edge, err := s.storage.GetFriendEdge(ctx, requestID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(pairOf(edge.RequesterID, edge.AddresseeID))
	defer unlock()

	// Re-read under the pair lock
	edge, err = s.storage.GetFriendEdge(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if edge.AddresseeID != addressee.ID {
		return nil, model.ErrNotAddressee
	}
	if edge.Status != model.FriendStatusPending {
		return nil, model.ErrRequestNotPending
	}

	edge.Status = status
	edge.UpdatedAt = s.clock.Now()
	if err := s.storage.SaveFriendEdge(ctx, edge); err != nil {
		return nil, err
	}

	s.publisher.PublishToUser(edge.RequesterID, model.Event{
		Type: model.EventFriendRequestResponded,
		Payload: model.FriendRequestRespondedPayload{
			RequestID:         edge.ID,
			AddresseeID:       addressee.ID,
			AddresseeUsername: addressee.Username,
			Status:            status,
		},
	})

	if status == model.FriendStatusAccepted {
		for _, id := range []model.UserID{edge.RequesterID, edge.AddresseeID} {
			if err := s.SendFriendList(ctx, id); err != nil {
				s.logger.Warn("failed to push friend list",
					slog.String("user_id", string(id)),
					slog.Any("error", err),
				)
			}
		}
	}

	s.logger.Info("friend request answered",
		slog.String("request_id", string(edge.ID)),
		slog.String("status", string(status)),
	)
	return edge, nil
}

// ListFriends returns accepted friends with their live online flag
func (s *Service) ListFriends(ctx context.Context, userID model.UserID) ([]model.Friend, error) {
	edges, err := s.storage.ListFriendEdges(ctx, userID)
	if err != nil {
		return nil, err
	}

	friends := []model.Friend{}
	for _, e := range edges {
		if e.Status != model.FriendStatusAccepted {
			continue
		}
		peer, err := s.storage.GetUser(ctx, e.Peer(userID))
		if err != nil {
			if errors.Is(err, model.ErrUserNotFound) {
				continue
			}
			return nil, err
		}
		friends = append(friends, model.Friend{
			ID:       peer.ID,
			Username: peer.Username,
			Online:   s.presence.IsOnline(peer.ID),
		})
	}
	return friends, nil
}

// PendingRequests returns pending requests addressed to the user
func (s *Service) PendingRequests(ctx context.Context, userID model.UserID) ([]model.FriendRequest, error) {
	edges, err := s.storage.ListFriendEdges(ctx, userID)
	if err != nil {
		return nil, err
	}

	requests := []model.FriendRequest{}
	for _, e := range edges {
		if e.Status != model.FriendStatusPending || e.AddresseeID != userID {
			continue
		}
		requester, err := s.storage.GetUser(ctx, e.RequesterID)
		if err != nil {
			if errors.Is(err, model.ErrUserNotFound) {
				continue
			}
			return nil, err
		}
		requests = append(requests, model.FriendRequest{
			ID:                e.ID,
			RequesterID:       requester.ID,
			RequesterUsername: requester.Username,
		})
	}
	return requests, nil
}

// SearchUsers finds other users by case-insensitive username substring
func (s *Service) SearchUsers(ctx context.Context, searcher model.UserID, query string) ([]model.UserRef, error) {
	query = strings.TrimSpace(query)
	if len(query) < MinSearchLength {
		return []model.UserRef{}, nil
	}

	users, err := s.storage.SearchUsers(ctx, query, searcher, SearchLimit)
	if err != nil {
		return nil, err
	}
	refs := make([]model.UserRef, len(users))
	for i, u := range users {
		refs[i] = u.Ref()
	}
	return refs, nil
}

// NotifyStatus tells every accepted friend that the user went online or offline
func (s *Service) NotifyStatus(ctx context.Context, user model.UserRef, online bool) error {
	edges, err := s.storage.ListFriendEdges(ctx, user.ID)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if e.Status != model.FriendStatusAccepted {
			continue
		}
		s.publisher.PublishToUser(e.Peer(user.ID), model.Event{
			Type: model.EventFriendStatus,
			Payload: model.FriendStatusPayload{
				UserID:   user.ID,
				Username: user.Username,
				Online:   online,
			},
		})
	}
	return nil
}

// SendFriendList pushes the user's current friend list to their connections
func (s *Service) SendFriendList(ctx context.Context, userID model.UserID) error {
	friends, err := s.ListFriends(ctx, userID)
	if err != nil {
		return err
	}
	s.publisher.PublishToUser(userID, model.Event{
		Type:    model.EventFriendListUpdate,
		Payload: model.FriendListPayload{Friends: friends},
	})
	return nil
}
