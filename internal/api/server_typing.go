package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Warehouser-dev/wryft-chat/internal/ephemeral"
	"github.com/Warehouser-dev/wryft-chat/internal/ws"
)

type listTypingOutput struct {
	Body []ephemeral.Typist
}

func typingList(ctx context.Context, svc TypingService, topic string) (*listTypingOutput, error) {
	typists, err := svc.List(ctx, topic)
	if err != nil {
		return nil, mapErr(err)
	}
	out := &listTypingOutput{}
	out.Body = typists
	if out.Body == nil {
		out.Body = []ephemeral.Typist{}
	}
	return out, nil
}

func typingStart(ctx context.Context, svc TypingService, bus Publisher, topic, userID string) error {
	if err := svc.Start(ctx, topic, userID); err != nil {
		return mapErr(err)
	}
	bus.Publish(topic, ws.TypingEvent(topic, userID))
	return nil
}

func typingStop(ctx context.Context, svc TypingService, bus Publisher, topic, userID string) error {
	if err := svc.Stop(ctx, topic, userID); err != nil {
		return mapErr(err)
	}
	bus.Publish(topic, ws.TypingEvent(topic, userID))
	return nil
}

func registerTypingHandlers(api huma.API, channels, dms TypingService, bus Publisher) {
	// --- Channel typing indicators ---

	type channelTypingInput struct {
		ChannelID string `path:"channel_id"`
		UserID    string `header:"X-User-Id" required:"true"`
	}

	huma.Register(api, huma.Operation{OperationID: "start-channel-typing", Method: http.MethodPost, Path: "/api/channels/{channel_id}/typing", Summary: "Mark the caller as typing in a channel", Tags: []string{"Typing"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *channelTypingInput) (*struct{}, error) {
			if err := typingStart(ctx, channels, bus, input.ChannelID, input.UserID); err != nil {
				return nil, err
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "stop-channel-typing", Method: http.MethodDelete, Path: "/api/channels/{channel_id}/typing", Summary: "Clear the caller's typing indicator in a channel", Tags: []string{"Typing"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *channelTypingInput) (*struct{}, error) {
			if err := typingStop(ctx, channels, bus, input.ChannelID, input.UserID); err != nil {
				return nil, err
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "list-channel-typing", Method: http.MethodGet, Path: "/api/channels/{channel_id}/typing", Summary: "List who is typing in a channel", Tags: []string{"Typing"}},
		func(ctx context.Context, input *struct {
			ChannelID string `path:"channel_id"`
		}) (*listTypingOutput, error) {
			return typingList(ctx, channels, input.ChannelID)
		})

	// --- DM typing indicators ---

	type dmTypingInput struct {
		DMID   string `path:"dm_id"`
		UserID string `header:"X-User-Id" required:"true"`
	}

	huma.Register(api, huma.Operation{OperationID: "start-dm-typing", Method: http.MethodPost, Path: "/api/dms/{dm_id}/typing", Summary: "Mark the caller as typing in a DM", Tags: []string{"Typing"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *dmTypingInput) (*struct{}, error) {
			if err := typingStart(ctx, dms, bus, input.DMID, input.UserID); err != nil {
				return nil, err
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "stop-dm-typing", Method: http.MethodDelete, Path: "/api/dms/{dm_id}/typing", Summary: "Clear the caller's typing indicator in a DM", Tags: []string{"Typing"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *dmTypingInput) (*struct{}, error) {
			if err := typingStop(ctx, dms, bus, input.DMID, input.UserID); err != nil {
				return nil, err
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "list-dm-typing", Method: http.MethodGet, Path: "/api/dms/{dm_id}/typing", Summary: "List who is typing in a DM", Tags: []string{"Typing"}},
		func(ctx context.Context, input *struct {
			DMID string `path:"dm_id"`
		}) (*listTypingOutput, error) {
			return typingList(ctx, dms, input.DMID)
		})
}
