package servecmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/quailyquaily/slackbard/internal/bot"
)

type socketEnvelope struct {
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Type       string          `json:"type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type eventsAPIPayload struct {
	TeamID  string          `json:"team_id,omitempty"`
	EventID string          `json:"event_id,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
}

type slackEvent struct {
	Type        string `json:"type,omitempty"`
	Subtype     string `json:"subtype,omitempty"`
	User        string `json:"user,omitempty"`
	Text        string `json:"text,omitempty"`
	Channel     string `json:"channel,omitempty"`
	ChannelType string `json:"channel_type,omitempty"`
	TS          string `json:"ts,omitempty"`
	ThreadTS    string `json:"thread_ts,omitempty"`
	BotID       string `json:"bot_id,omitempty"`
	Team        string `json:"team,omitempty"`
}

type slashCommand struct {
	Command     string `json:"command,omitempty"`
	Text        string `json:"text,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	UserName    string `json:"user_name,omitempty"`
	ChannelID   string `json:"channel_id,omitempty"`
	TeamID      string `json:"team_id,omitempty"`
	TriggerID   string `json:"trigger_id,omitempty"`
	ResponseURL string `json:"response_url,omitempty"`
}

type inboundEvent struct {
	TeamID string
	Event  bot.Event
}

// consumeSocket reads envelopes until the connection drops, acknowledging
// each before the handler runs so slow work never stalls redelivery.
func consumeSocket(ctx context.Context, conn *websocket.Conn, onEnvelope func(envelope socketEnvelope) error) error {
	if conn == nil {
		return fmt.Errorf("slack websocket connection is nil")
	}
	for {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var envelope socketEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		if strings.TrimSpace(envelope.EnvelopeID) != "" {
			if err := conn.WriteJSON(map[string]string{"envelope_id": envelope.EnvelopeID}); err != nil {
				return err
			}
		}
		if onEnvelope == nil {
			continue
		}
		if err := onEnvelope(envelope); err != nil {
			return err
		}
	}
}

// parseInboundEvent extracts a chat event from an events_api envelope.
// Events with a message subtype or without a channel are dropped here;
// bot-origin filtering is the orchestrator's decision, not the parser's.
func parseInboundEvent(envelope socketEnvelope) (inboundEvent, bool, error) {
	if strings.TrimSpace(envelope.Type) != "events_api" || len(envelope.Payload) == 0 {
		return inboundEvent{}, false, nil
	}
	var payload eventsAPIPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return inboundEvent{}, false, err
	}
	var event slackEvent
	if err := json.Unmarshal(payload.Event, &event); err != nil {
		return inboundEvent{}, false, err
	}
	eventType := strings.TrimSpace(event.Type)
	if eventType != "message" && eventType != "app_mention" {
		return inboundEvent{}, false, nil
	}
	if strings.TrimSpace(event.Subtype) != "" {
		return inboundEvent{}, false, nil
	}
	channelID := strings.TrimSpace(event.Channel)
	if channelID == "" {
		return inboundEvent{}, false, nil
	}
	teamID := strings.TrimSpace(payload.TeamID)
	if teamID == "" {
		teamID = strings.TrimSpace(event.Team)
	}

	return inboundEvent{
		TeamID: teamID,
		Event: bot.Event{
			EventID:     strings.TrimSpace(payload.EventID),
			UserID:      strings.TrimSpace(event.User),
			Text:        strings.TrimSpace(event.Text),
			BotID:       strings.TrimSpace(event.BotID),
			ChannelID:   channelID,
			ChannelType: strings.ToLower(strings.TrimSpace(event.ChannelType)),
			ThreadTS:    strings.TrimSpace(event.ThreadTS),
		},
	}, true, nil
}

func parseSlashCommand(envelope socketEnvelope) (slashCommand, bool, error) {
	if strings.TrimSpace(envelope.Type) != "slash_commands" || len(envelope.Payload) == 0 {
		return slashCommand{}, false, nil
	}
	var cmd slashCommand
	if err := json.Unmarshal(envelope.Payload, &cmd); err != nil {
		return slashCommand{}, false, err
	}
	if strings.TrimSpace(cmd.Command) == "" {
		return slashCommand{}, false, nil
	}
	return cmd, true, nil
}

// shouldHandleMessage decides whether a plain message event addresses the
// bot: direct messages always do, channel messages only when they carry
// the trigger keyword or an explicit mention.
func shouldHandleMessage(ev bot.Event, trigger, botUserID string) bool {
	if ev.ChannelType == "im" {
		return true
	}
	lower := strings.ToLower(ev.Text)
	if strings.Contains(lower, strings.ToLower(trigger)) {
		return true
	}
	return botUserID != "" && strings.Contains(ev.Text, "<@"+botUserID+">")
}
