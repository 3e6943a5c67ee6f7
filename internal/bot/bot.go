// Package bot coordinates one inbound Slack event end to end: dedupe,
// self-filter, session resolution, completion, persistence, reply.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quailyquaily/slackbard/internal/dedup"
	"github.com/quailyquaily/slackbard/internal/session"
	"github.com/quailyquaily/slackbard/internal/slackfmt"
	"github.com/quailyquaily/slackbard/llm"
)

const (
	DefaultTrigger = "bard"

	greetingText     = "Hi :wave:"
	blockedText      = "Error generating AI response. The request was blocked by the content safety policy."
	serviceErrorText = "Error generating AI response. Please try again later."
)

// Outcome is the terminal state of one inbound event.
type Outcome string

const (
	// OutcomeSuppressed: duplicate delivery, no reply.
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeIgnored: event originated from a bot, no reply.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeReplied: a reply was emitted (answer, greeting, or error text).
	OutcomeReplied Outcome = "replied"
)

// Event is the normalized inbound message or mention.
type Event struct {
	EventID     string
	UserID      string
	Text        string
	BotID       string
	ChannelID   string
	ChannelType string
	ThreadTS    string
}

// Appender is the write side of the history store.
type Appender interface {
	Append(ctx context.Context, userID, userText, modelText string) error
}

// Poster delivers a formatted reply to the channel the event came from.
type Poster interface {
	Post(ctx context.Context, channelID, fallback string, blocks []slackfmt.Block, threadTS string) error
}

type Options struct {
	Logger    *slog.Logger
	Window    *dedup.Window
	Sessions  *session.Cache
	History   Appender
	Client    llm.Client
	Params    llm.Params
	Poster    Poster
	BotUserID string
	Trigger   string
}

type Bot struct {
	logger    *slog.Logger
	window    *dedup.Window
	sessions  *session.Cache
	history   Appender
	client    llm.Client
	params    llm.Params
	poster    Poster
	botUserID string
	trigger   string
}

func New(opts Options) (*Bot, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("session cache is required")
	}
	if opts.History == nil {
		return nil, fmt.Errorf("history appender is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("completion client is required")
	}
	if opts.Poster == nil {
		return nil, fmt.Errorf("poster is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	window := opts.Window
	if window == nil {
		window = dedup.NewWindow(dedup.DefaultCapacity)
	}
	trigger := strings.TrimSpace(opts.Trigger)
	if trigger == "" {
		trigger = DefaultTrigger
	}
	return &Bot{
		logger:    logger,
		window:    window,
		sessions:  opts.Sessions,
		history:   opts.History,
		client:    opts.Client,
		params:    opts.Params,
		poster:    opts.Poster,
		botUserID: strings.TrimSpace(opts.BotUserID),
		trigger:   trigger,
	}, nil
}

// HandleEvent runs the per-event state machine. AI failures become error
// replies, never silence; only duplicates and bot-origin events are silent.
func (b *Bot) HandleEvent(ctx context.Context, ev Event) (Outcome, error) {
	if b.window.IsDuplicate(ev.EventID) {
		b.logger.Debug("bard_event_suppressed", "event_id", ev.EventID, "channel_id", ev.ChannelID)
		return OutcomeSuppressed, nil
	}
	if strings.TrimSpace(ev.BotID) != "" || (b.botUserID != "" && strings.TrimSpace(ev.UserID) == b.botUserID) {
		b.logger.Debug("bard_event_ignored", "event_id", ev.EventID, "bot_id", ev.BotID)
		return OutcomeIgnored, nil
	}

	text := strings.TrimSpace(ev.Text)
	if b.isGreetingOnly(text) {
		return OutcomeReplied, b.post(ctx, ev, greetingText, slackfmt.BuildBlocks(greetingText))
	}

	reply, completed := b.Ask(ctx, ev.UserID, text)
	b.logger.Info("bard_event_replied",
		"event_id", ev.EventID,
		"user_id", ev.UserID,
		"channel_id", ev.ChannelID,
		"completed", completed,
	)

	body := slackfmt.AdjustMarkdown(reply)
	if userID := strings.TrimSpace(ev.UserID); userID != "" {
		body = "<@" + userID + ">, " + body
	}
	return OutcomeReplied, b.post(ctx, ev, body, slackfmt.BuildBlocks(body))
}

// Ask resolves the user's session, requests a completion, and persists the
// turn on success. It always returns some reply text; the second result
// reports whether the completion succeeded and the turn was recorded.
func (b *Bot) Ask(ctx context.Context, userID, text string) (string, bool) {
	sess, err := b.sessions.Resolve(ctx, userID)
	if err != nil {
		b.logger.Warn("bard_session_resolve_error", "user_id", userID, "error", err.Error())
		return serviceErrorText, false
	}

	contents := append(sess.Transcript(), llm.Content{Role: llm.RoleUser, Text: text})
	res, err := b.client.Complete(ctx, llm.Request{Contents: contents, Params: b.params})
	if err != nil {
		if llm.IsBlocked(err) {
			b.logger.Warn("bard_turn_blocked", "user_id", userID, "error", err.Error())
			return blockedText, false
		}
		b.logger.Warn("bard_completion_error", "user_id", userID, "error", err.Error())
		return serviceErrorText, false
	}

	// Blocked or errored completions never reach this point, so error
	// surrogates are never written into history.
	if err := b.history.Append(ctx, userID, text, res.Text); err != nil {
		b.logger.Warn("bard_history_append_error", "user_id", userID, "error", err.Error())
	}
	sess.Push(text, res.Text)
	return res.Text, true
}

func (b *Bot) isGreetingOnly(text string) bool {
	if text == "" {
		return true
	}
	if strings.EqualFold(text, b.trigger) {
		return true
	}
	return b.botUserID != "" && text == "<@"+b.botUserID+">"
}

func (b *Bot) post(ctx context.Context, ev Event, fallback string, blocks []slackfmt.Block) error {
	if err := b.poster.Post(ctx, ev.ChannelID, fallback, blocks, ev.ThreadTS); err != nil {
		b.logger.Warn("bard_post_error", "channel_id", ev.ChannelID, "error", err.Error())
		return err
	}
	return nil
}
