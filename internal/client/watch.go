package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcoot/tictactoe-live/internal/model"
)

// feedEvents are the frames a friend feed subscription receives
var feedEvents = []model.EventType{
	model.EventFriendListUpdate,
	model.EventFriendStatus,
	model.EventFriendRequestReceived,
	model.EventFriendRequestResponded,
}

// WatchOptions tunes WatchRoom
type WatchOptions struct {
	// Move is submitted once the room is joined and shown optimistically until confirmed
	Move *int
	// OnChange runs for every applied change, in event order, on the calling goroutine
	OnChange func(RoomView)
}

// WatchRoom follows one room until it finishes, ctx ends or the session is terminated
// A refused opening move ends the watch with ErrMoveRejected
func WatchRoom(ctx context.Context, api *API, session *Session, code string, opts WatchOptions) (RoomView, error) {
	sub, err := session.JoinRoom(code)
	if err != nil {
		return RoomView{}, err
	}
	defer sub.Close()

	mirror := NewRoomMirror(code, session.UserID())
	notify := func(changed bool) {
		if changed && opts.OnChange != nil {
			opts.OnChange(mirror.View())
		}
	}

	refresh := func() error {
		snap, err := api.GetRoom(ctx, code)
		if err != nil {
			return err
		}
		notify(mirror.LoadSnapshot(*snap))
		return nil
	}
	if err := refresh(); err != nil {
		return mirror.View(), err
	}

	// The room subscription exists before the move goes out, so its answer cannot be missed
	outstanding := false
	if opts.Move != nil {
		notify(mirror.Propose(*opts.Move))
		if err := session.MakeMove(code, *opts.Move); err != nil {
			return mirror.View(), err
		}
		outstanding = true
	}

	for {
		v := mirror.View()
		if outstanding && v.Room != nil && !v.Room.Board.IsEmpty(*opts.Move) {
			outstanding = false
		}
		if v.Result != nil {
			return v, nil
		}

		select {
		case <-ctx.Done():
			return mirror.View(), ctx.Err()

		case ev, ok := <-sub.Events():
			if !ok {
				return mirror.View(), ErrNotConnected
			}
			switch ev.Event {
			case EventTerminated:
				return mirror.View(), ev.Err
			case EventReconnectFailing:
				notify(mirror.MarkDisconnected(ev.Attempt))
				continue
			case EventReconnected:
				notify(mirror.Apply(ev.Envelope))
				// The re-join acknowledgement also carries a snapshot, so a transient failure here is recoverable
				if err := refresh(); err != nil && !errors.Is(err, ErrTransient) {
					return mirror.View(), err
				}
				continue
			case model.EventError:
				notify(mirror.Apply(ev.Envelope))
				if outstanding {
					v := mirror.View()
					return v, fmt.Errorf("%w: %s", ErrMoveRejected, v.Rejected)
				}
				continue
			}
			notify(mirror.Apply(ev.Envelope))
		}
	}
}

// WatchFeed keeps a FeedMirror current until ctx ends or the session is terminated
// onChange runs for every applied change on the calling goroutine
func WatchFeed(ctx context.Context, api *API, session *Session, onChange func(FeedView)) error {
	sub := session.Subscribe(feedEvents...)
	defer sub.Close()

	mirror := NewFeedMirror()
	notify := func(changed bool) {
		if changed && onChange != nil {
			onChange(mirror.View())
		}
	}

	refresh := func() error {
		friends, err := api.Friends(ctx)
		if err != nil {
			return err
		}
		requests, err := api.FriendRequests(ctx)
		if err != nil {
			return err
		}
		notify(mirror.Load(friends, requests))
		return nil
	}
	if err := refresh(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-sub.Events():
			if !ok {
				return ErrNotConnected
			}
			switch ev.Event {
			case EventTerminated:
				return ev.Err
			case EventReconnectFailing:
				notify(mirror.MarkDisconnected(ev.Attempt))
				continue
			case EventReconnected:
				notify(mirror.Apply(ev.Envelope))
				if err := refresh(); err != nil && !errors.Is(err, ErrTransient) {
					return err
				}
				continue
			}
			notify(mirror.Apply(ev.Envelope))
		}
	}
}
