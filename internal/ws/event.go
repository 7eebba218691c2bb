package ws

import "encoding/json"

// Stream message tags. Every frame is a tagged union discriminated by the
// "type" field; unrecognized tags are ignored without closing the connection.
const (
	TypeMessage        = "message"
	TypeMessageEdited  = "message_edited"
	TypeMessageDeleted = "message_deleted"
	TypeTyping         = "typing"
	TypeUserJoined     = "user_joined"
	TypeUserLeft       = "user_left"
	TypePresenceUpdate = "presence_update"

	TypeVoiceJoin         = "voice_join"
	TypeVoiceLeave        = "voice_leave"
	TypeVoiceOffer        = "voice_offer"
	TypeVoiceAnswer       = "voice_answer"
	TypeVoiceICECandidate = "voice_ice_candidate"
	TypeVoiceHeartbeat    = "voice_heartbeat"
	TypeVoiceUserJoined   = "voice_user_joined"
	TypeVoiceUserLeft     = "voice_user_left"
)

type envelope struct {
	Type string `json:"type"`
}

// voiceEvent covers the fields shared by the voice-signaling tags. Offer,
// answer and ICE-candidate frames carry extra fields (sdp, candidate,
// targetPeerId) that are relayed opaquely and never parsed here.
type voiceEvent struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
	PeerID    string `json:"peerId"`
	Username  string `json:"username,omitempty"`
}

// inboundFrame is the classification of one client frame: an optional
// payload to republish to the topic and an optional voice-session heartbeat
// to bookkeep. The zero value means the frame is dropped.
type inboundFrame struct {
	republish string
	heartbeat *voiceEvent
}

// parseInbound applies the relay and rewrite rules to a raw client frame.
// Chat and typing frames pass through verbatim, as do WebRTC offer/answer/
// ICE frames (every subscriber receives them; clients filter by target peer
// id). voice_join and voice_leave are rewritten into the server-synthesized
// membership tags. voice_heartbeat is consumed. Malformed payloads and
// unknown tags fall out as a drop.
func parseInbound(raw []byte) inboundFrame {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return inboundFrame{}
	}

	switch env.Type {
	case TypeMessage, TypeMessageEdited, TypeMessageDeleted, TypeTyping,
		TypeVoiceOffer, TypeVoiceAnswer, TypeVoiceICECandidate:
		return inboundFrame{republish: string(raw)}

	case TypeVoiceJoin:
		var v voiceEvent
		if err := json.Unmarshal(raw, &v); err != nil {
			return inboundFrame{}
		}
		return inboundFrame{republish: marshalEvent(voiceEvent{
			Type:      TypeVoiceUserJoined,
			ChannelID: v.ChannelID,
			PeerID:    v.PeerID,
			Username:  v.Username,
		})}

	case TypeVoiceLeave:
		var v voiceEvent
		if err := json.Unmarshal(raw, &v); err != nil {
			return inboundFrame{}
		}
		return inboundFrame{republish: marshalEvent(voiceEvent{
			Type:      TypeVoiceUserLeft,
			ChannelID: v.ChannelID,
			PeerID:    v.PeerID,
		})}

	case TypeVoiceHeartbeat:
		var v voiceEvent
		if err := json.Unmarshal(raw, &v); err != nil {
			return inboundFrame{}
		}
		return inboundFrame{heartbeat: &v}

	default:
		return inboundFrame{}
	}
}

func marshalEvent(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// UserJoinedEvent is broadcast to a topic when a connection subscribes.
func UserJoinedEvent(user string) string {
	return marshalEvent(struct {
		Type string `json:"type"`
		User string `json:"user"`
	}{TypeUserJoined, user})
}

// UserLeftEvent is broadcast to a topic when a connection tears down.
func UserLeftEvent(user string) string {
	return marshalEvent(struct {
		Type string `json:"type"`
		User string `json:"user"`
	}{TypeUserLeft, user})
}

// PresenceUpdateEvent is broadcast to every topic when a user changes status.
func PresenceUpdateEvent(userID, status string) string {
	return marshalEvent(struct {
		Type   string `json:"type"`
		UserID string `json:"user_id"`
		Status string `json:"status"`
	}{TypePresenceUpdate, userID, status})
}

// TypingEvent is published to a channel's topic when a user starts or is
// typing there.
func TypingEvent(channel, user string) string {
	return marshalEvent(struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
		User    string `json:"user"`
	}{TypeTyping, channel, user})
}
