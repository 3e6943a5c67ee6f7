package servecmd

import (
	"encoding/json"
	"testing"

	"github.com/quailyquaily/slackbard/internal/bot"
)

func eventsEnvelope(t *testing.T, teamID, eventID string, event map[string]any) socketEnvelope {
	t.Helper()
	rawEvent, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	payload, err := json.Marshal(map[string]any{
		"team_id":  teamID,
		"event_id": eventID,
		"event":    json.RawMessage(rawEvent),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return socketEnvelope{
		EnvelopeID: "env_1",
		Type:       "events_api",
		Payload:    payload,
	}
}

func TestParseInboundEventMention(t *testing.T) {
	t.Parallel()

	envelope := eventsEnvelope(t, "T1", "Ev1", map[string]any{
		"type":         "app_mention",
		"user":         "U1",
		"text":         "<@UBOT> what time is it",
		"channel":      "C1",
		"channel_type": "channel",
		"ts":           "111.222",
		"thread_ts":    "111.000",
	})
	inbound, ok, err := parseInboundEvent(envelope)
	if err != nil {
		t.Fatalf("parseInboundEvent: %v", err)
	}
	if !ok {
		t.Fatalf("expected event to parse")
	}
	if inbound.TeamID != "T1" {
		t.Fatalf("team = %q, want T1", inbound.TeamID)
	}
	want := bot.Event{
		EventID:     "Ev1",
		UserID:      "U1",
		Text:        "<@UBOT> what time is it",
		ChannelID:   "C1",
		ChannelType: "channel",
		ThreadTS:    "111.000",
	}
	if inbound.Event != want {
		t.Fatalf("event = %+v, want %+v", inbound.Event, want)
	}
}

func TestParseInboundEventKeepsBotID(t *testing.T) {
	t.Parallel()

	envelope := eventsEnvelope(t, "T1", "Ev2", map[string]any{
		"type":    "message",
		"text":    "automated post",
		"channel": "C1",
		"bot_id":  "B42",
	})
	inbound, ok, err := parseInboundEvent(envelope)
	if err != nil {
		t.Fatalf("parseInboundEvent: %v", err)
	}
	if !ok {
		t.Fatalf("bot-origin events must reach the orchestrator, not be dropped here")
	}
	if inbound.Event.BotID != "B42" {
		t.Fatalf("bot_id = %q, want B42", inbound.Event.BotID)
	}
}

func TestParseInboundEventSkips(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		envelope socketEnvelope
	}{
		{
			name:     "non events_api envelope",
			envelope: socketEnvelope{Type: "hello"},
		},
		{
			name: "message with subtype",
			envelope: eventsEnvelope(t, "T1", "Ev3", map[string]any{
				"type":    "message",
				"subtype": "message_changed",
				"user":    "U1",
				"text":    "edited",
				"channel": "C1",
			}),
		},
		{
			name: "reaction event",
			envelope: eventsEnvelope(t, "T1", "Ev4", map[string]any{
				"type": "reaction_added",
				"user": "U1",
			}),
		},
		{
			name: "missing channel",
			envelope: eventsEnvelope(t, "T1", "Ev5", map[string]any{
				"type": "message",
				"user": "U1",
				"text": "hi",
			}),
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, ok, err := parseInboundEvent(tc.envelope)
			if err != nil {
				t.Fatalf("parseInboundEvent: %v", err)
			}
			if ok {
				t.Fatalf("expected envelope to be skipped")
			}
		})
	}
}

func TestParseInboundEventTeamFallback(t *testing.T) {
	t.Parallel()

	envelope := eventsEnvelope(t, "", "Ev6", map[string]any{
		"type":    "message",
		"user":    "U1",
		"text":    "bard hello",
		"channel": "C1",
		"team":    "T9",
	})
	inbound, ok, err := parseInboundEvent(envelope)
	if err != nil {
		t.Fatalf("parseInboundEvent: %v", err)
	}
	if !ok {
		t.Fatalf("expected event to parse")
	}
	if inbound.TeamID != "T9" {
		t.Fatalf("team = %q, want T9 from event.team fallback", inbound.TeamID)
	}
}

func TestParseSlashCommand(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(map[string]any{
		"command":      "/bard",
		"text":         "what is the capital of France?",
		"user_id":      "U1",
		"channel_id":   "C1",
		"team_id":      "T1",
		"response_url": "https://hooks.slack.com/commands/T1/1/xyz",
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	cmd, ok, err := parseSlashCommand(socketEnvelope{
		EnvelopeID: "env_2",
		Type:       "slash_commands",
		Payload:    payload,
	})
	if err != nil {
		t.Fatalf("parseSlashCommand: %v", err)
	}
	if !ok {
		t.Fatalf("expected command to parse")
	}
	if cmd.Command != "/bard" || cmd.UserID != "U1" || cmd.TeamID != "T1" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if cmd.ResponseURL != "https://hooks.slack.com/commands/T1/1/xyz" {
		t.Fatalf("response_url = %q", cmd.ResponseURL)
	}
}

func TestParseSlashCommandSkipsOtherEnvelopes(t *testing.T) {
	t.Parallel()

	_, ok, err := parseSlashCommand(socketEnvelope{Type: "events_api", Payload: []byte(`{}`)})
	if err != nil {
		t.Fatalf("parseSlashCommand: %v", err)
	}
	if ok {
		t.Fatalf("events_api envelope must not parse as a slash command")
	}
}

func TestShouldHandleMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		event bot.Event
		want  bool
	}{
		{
			name:  "direct message without trigger",
			event: bot.Event{Text: "hello there", ChannelType: "im"},
			want:  true,
		},
		{
			name:  "channel message with trigger",
			event: bot.Event{Text: "hey Bard, help me out", ChannelType: "channel"},
			want:  true,
		},
		{
			name:  "channel message with mention",
			event: bot.Event{Text: "<@UBOT> help me out", ChannelType: "channel"},
			want:  true,
		},
		{
			name:  "channel chatter",
			event: bot.Event{Text: "lunch anyone?", ChannelType: "channel"},
			want:  false,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := shouldHandleMessage(tc.event, "bard", "UBOT")
			if got != tc.want {
				t.Fatalf("shouldHandleMessage = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCommandTableAliases(t *testing.T) {
	t.Parallel()

	for _, command := range []string{"/bard", "/zbard", "/wf", "/zwf"} {
		if _, ok := commandTable[command]; !ok {
			t.Fatalf("command %s is not routed", command)
		}
	}
}
