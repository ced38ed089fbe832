// Package matrix runs the assistant as a Matrix bot. Every text message
// from an allowed user is handed to the assistant and the reply is posted
// to the same room. Messages are plaintext; end-to-end encryption is not
// supported.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/teemow/agentcal/internal/assistant"
	"github.com/teemow/agentcal/internal/logging"
)

// TransportName labels messages arriving over Matrix.
const TransportName = "matrix"

const (
	syncBackoffMin = 2 * time.Second
	syncBackoffMax = 5 * time.Minute
	// healthySync is how long a sync must run before the backoff resets.
	healthySync = time.Minute
)

// Messenger handles a message and returns the text to post back.
type Messenger interface {
	Reply(ctx context.Context, user, message string) string
}

// MessengerFunc adapts a function to Messenger.
type MessengerFunc func(ctx context.Context, user, message string) string

// Reply calls f.
func (f MessengerFunc) Reply(ctx context.Context, user, message string) string {
	return f(ctx, user, message)
}

// ForAssistant routes messages to a.Handle.
func ForAssistant(a *assistant.Assistant) Messenger {
	return MessengerFunc(func(ctx context.Context, user, message string) string {
		return a.Handle(ctx, TransportName, user, message).Text
	})
}

// Client is the part of *mautrix.Client the bot uses.
type Client interface {
	SendText(ctx context.Context, roomID id.RoomID, text string) (*mautrix.RespSendEvent, error)
	JoinRoomByID(ctx context.Context, roomID id.RoomID) (*mautrix.RespJoinRoom, error)
}

// Config configures a Bot.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string

	// AllowedUsers restricts who may talk to the bot. Empty allows everyone.
	AllowedUsers []string

	// AutoJoin accepts room invites sent to the bot.
	AutoJoin bool

	Logger *slog.Logger
}

// Bot relays Matrix messages to a Messenger.
type Bot struct {
	mx        *mautrix.Client
	client    Client
	messenger Messenger
	userID    id.UserID
	allowed   map[id.UserID]bool
	autoJoin  bool
	started   time.Time
	logger    *slog.Logger
}

// New creates a bot logged in with an access token.
func New(cfg Config, messenger Messenger) (*Bot, error) {
	mx, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}
	b := newBot(cfg, mx, messenger)
	b.mx = mx

	syncer, ok := mx.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return nil, errors.New("unexpected Matrix syncer type")
	}
	syncer.OnEventType(event.EventMessage, b.handleMessage)
	syncer.OnEventType(event.StateMember, b.handleMembership)
	return b, nil
}

func newBot(cfg Config, client Client, messenger Messenger) *Bot {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[id.UserID]bool, len(cfg.AllowedUsers))
	for _, u := range cfg.AllowedUsers {
		allowed[id.UserID(u)] = true
	}
	return &Bot{
		client:    client,
		messenger: messenger,
		userID:    id.UserID(cfg.UserID),
		allowed:   allowed,
		autoJoin:  cfg.AutoJoin,
		started:   time.Now(),
		logger:    logging.WithOperation(logger, "transport.matrix"),
	}
}

// Run syncs with the homeserver until ctx is cancelled, reconnecting with
// exponential backoff after transient failures.
func (b *Bot) Run(ctx context.Context) error {
	if b.mx == nil {
		return errors.New("matrix bot has no client")
	}
	b.started = time.Now()
	b.logger.Info("Matrix bot started", slog.String("user_id", b.userID.String()))

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = syncBackoffMin
	bo.MaxInterval = syncBackoffMax

	for {
		began := time.Now()
		err := b.mx.SyncWithContext(ctx)
		if ctx.Err() != nil {
			b.logger.Info("Matrix bot stopped")
			return nil
		}
		if err == nil {
			return nil
		}
		if time.Since(began) > healthySync {
			bo.Reset()
		}

		wait := bo.NextBackOff()
		b.logger.Error("Matrix sync stopped; reconnecting", logging.Err(err), slog.Duration("backoff", wait))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (b *Bot) isAllowed(user id.UserID) bool {
	return len(b.allowed) == 0 || b.allowed[user]
}

func (b *Bot) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == b.userID {
		return
	}
	// Skip history replayed by the initial sync.
	if time.UnixMilli(evt.Timestamp).Before(b.started) {
		return
	}
	msg := evt.Content.AsMessage()
	if msg == nil || msg.MsgType != event.MsgText || msg.Body == "" {
		return
	}
	if !b.isAllowed(evt.Sender) {
		b.logger.DebugContext(ctx, "Ignoring message from user not on the allow list", logging.UserHash(evt.Sender.String()))
		return
	}

	reply := b.messenger.Reply(ctx, evt.Sender.String(), msg.Body)
	if reply == "" {
		return
	}
	if _, err := b.client.SendText(ctx, evt.RoomID, reply); err != nil {
		b.logger.WarnContext(ctx, "Failed to send Matrix reply", logging.UserHash(evt.Sender.String()), logging.Err(err))
	}
}

func (b *Bot) handleMembership(ctx context.Context, evt *event.Event) {
	if !b.autoJoin || evt.GetStateKey() != b.userID.String() {
		return
	}
	member := evt.Content.AsMember()
	if member == nil || member.Membership != event.MembershipInvite {
		return
	}
	if !b.isAllowed(evt.Sender) {
		return
	}
	if _, err := b.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		if errors.Is(err, mautrix.MForbidden) {
			b.logger.WarnContext(ctx, "Room join refused", slog.String("room", evt.RoomID.String()))
			return
		}
		b.logger.WarnContext(ctx, "Failed to join room", slog.String("room", evt.RoomID.String()), logging.Err(err))
		return
	}
	b.logger.InfoContext(ctx, "Joined room", slog.String("room", evt.RoomID.String()))
}
