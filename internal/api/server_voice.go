package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Warehouser-dev/wryft-chat/internal/ephemeral"
)

func registerVoiceHandlers(api huma.API, svc VoiceService) {
	type guildVoiceOutput struct {
		Body []ephemeral.ChannelUsers
	}
	huma.Register(api, huma.Operation{OperationID: "guild-voice", Method: http.MethodGet, Path: "/api/guilds/{guild_id}/voice", Summary: "List voice participants per channel in a guild", Tags: []string{"Voice"}},
		func(ctx context.Context, input *struct {
			GuildID string `path:"guild_id"`
		}) (*guildVoiceOutput, error) {
			channels, err := svc.GuildVoice(ctx, input.GuildID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &guildVoiceOutput{}
			out.Body = channels
			if out.Body == nil {
				out.Body = []ephemeral.ChannelUsers{}
			}
			return out, nil
		})

	type voiceChannelInput struct {
		ChannelID string `path:"channel_id"`
		UserID    string `header:"X-User-Id" required:"true"`
	}

	huma.Register(api, huma.Operation{OperationID: "voice-join", Method: http.MethodPost, Path: "/api/voice/{channel_id}/join", Summary: "Register the caller in a voice channel", Tags: []string{"Voice"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *struct {
			ChannelID string `path:"channel_id"`
			UserID    string `header:"X-User-Id" required:"true"`
			Body      struct {
				PeerID string `json:"peer_id" required:"true"`
			}
		}) (*struct{}, error) {
			if err := svc.Join(ctx, input.ChannelID, input.UserID, input.Body.PeerID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "voice-leave", Method: http.MethodPost, Path: "/api/voice/{channel_id}/leave", Summary: "Remove the caller from a voice channel", Tags: []string{"Voice"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *voiceChannelInput) (*struct{}, error) {
			if err := svc.Leave(ctx, input.ChannelID, input.UserID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "voice-heartbeat", Method: http.MethodPost, Path: "/api/voice/{channel_id}/heartbeat", Summary: "Keep the caller's voice session alive", Tags: []string{"Voice"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *voiceChannelInput) (*struct{}, error) {
			if err := svc.Refresh(ctx, input.ChannelID, input.UserID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})
}
