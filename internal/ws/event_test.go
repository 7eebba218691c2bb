package ws

import (
	"encoding/json"
	"testing"
)

func TestParseInboundRelaysChatTagsVerbatim(t *testing.T) {
	for _, raw := range []string{
		`{"type":"message","id":"m1","channel":"c1","content":"hi","author":"bob","timestamp":"t"}`,
		`{"type":"message_edited","id":"m1","channel":"c1","content":"hi!"}`,
		`{"type":"message_deleted","id":"m1","channel":"c1"}`,
		`{"type":"typing","channel":"c1","user":"bob"}`,
	} {
		frame := parseInbound([]byte(raw))
		if frame.republish != raw {
			t.Fatalf("parseInbound(%s).republish = %q; want verbatim", raw, frame.republish)
		}
		if frame.heartbeat != nil {
			t.Fatalf("parseInbound(%s) produced a heartbeat", raw)
		}
	}
}

func TestParseInboundRelaysSignalingVerbatim(t *testing.T) {
	// Offer/answer/ICE go to every subscriber untouched; the receiving
	// client filters by targetPeerId.
	raw := `{"type":"voice_offer","channelId":"c1","peerId":"p1","targetPeerId":"p2","offer":{"sdp":"x"}}`
	frame := parseInbound([]byte(raw))
	if frame.republish != raw {
		t.Fatalf("republish = %q; want verbatim", frame.republish)
	}
}

func TestParseInboundRewritesVoiceJoin(t *testing.T) {
	raw := `{"type":"voice_join","channelId":"c1","peerId":"p1","username":"bob"}`
	frame := parseInbound([]byte(raw))
	if frame.republish == "" {
		t.Fatal("voice_join should be republished")
	}

	var out voiceEvent
	if err := json.Unmarshal([]byte(frame.republish), &out); err != nil {
		t.Fatalf("rewritten payload is not JSON: %v", err)
	}
	want := voiceEvent{Type: TypeVoiceUserJoined, ChannelID: "c1", PeerID: "p1", Username: "bob"}
	if out != want {
		t.Fatalf("rewritten event = %+v; want %+v", out, want)
	}
}

func TestParseInboundRewritesVoiceLeave(t *testing.T) {
	raw := `{"type":"voice_leave","channelId":"c1","peerId":"p1"}`
	frame := parseInbound([]byte(raw))

	var out voiceEvent
	if err := json.Unmarshal([]byte(frame.republish), &out); err != nil {
		t.Fatalf("rewritten payload is not JSON: %v", err)
	}
	want := voiceEvent{Type: TypeVoiceUserLeft, ChannelID: "c1", PeerID: "p1"}
	if out != want {
		t.Fatalf("rewritten event = %+v; want %+v", out, want)
	}
}

func TestParseInboundConsumesVoiceHeartbeat(t *testing.T) {
	raw := `{"type":"voice_heartbeat","channelId":"c1","peerId":"p1"}`
	frame := parseInbound([]byte(raw))
	if frame.republish != "" {
		t.Fatalf("voice_heartbeat republished as %q; want nothing", frame.republish)
	}
	if frame.heartbeat == nil {
		t.Fatal("voice_heartbeat should surface for bookkeeping")
	}
	if frame.heartbeat.ChannelID != "c1" || frame.heartbeat.PeerID != "p1" {
		t.Fatalf("heartbeat = %+v; want channel c1 peer p1", frame.heartbeat)
	}
}

func TestParseInboundDropsMalformedAndUnknown(t *testing.T) {
	for _, raw := range []string{
		`not json at all`,
		`{"type":"subscribe_everything"}`,
		`{}`,
		`{"type":"user_joined","user":"mallory"}`, // server-synthesized tags are not relayed from clients
	} {
		frame := parseInbound([]byte(raw))
		if frame.republish != "" || frame.heartbeat != nil {
			t.Fatalf("parseInbound(%s) = %+v; want drop", raw, frame)
		}
	}
}

func TestEventConstructors(t *testing.T) {
	var joined struct {
		Type string `json:"type"`
		User string `json:"user"`
	}
	if err := json.Unmarshal([]byte(UserJoinedEvent("bob")), &joined); err != nil {
		t.Fatalf("UserJoinedEvent is not JSON: %v", err)
	}
	if joined.Type != TypeUserJoined || joined.User != "bob" {
		t.Fatalf("UserJoinedEvent = %+v", joined)
	}

	var pres struct {
		Type   string `json:"type"`
		UserID string `json:"user_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(PresenceUpdateEvent("u1", "dnd")), &pres); err != nil {
		t.Fatalf("PresenceUpdateEvent is not JSON: %v", err)
	}
	if pres.Type != TypePresenceUpdate || pres.UserID != "u1" || pres.Status != "dnd" {
		t.Fatalf("PresenceUpdateEvent = %+v", pres)
	}
}
