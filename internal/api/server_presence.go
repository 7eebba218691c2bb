package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Warehouser-dev/wryft-chat/internal/presence"
)

type presenceBody struct {
	UserID   string    `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

func presenceResponse(rec presence.Record) presenceBody {
	return presenceBody{UserID: rec.UserID, Status: rec.Status, LastSeen: rec.LastSeen}
}

func registerPresenceHandlers(api huma.API, svc PresenceService) {
	type presenceOutput struct {
		Body presenceBody
	}

	huma.Register(api, huma.Operation{OperationID: "set-presence", Method: http.MethodPost, Path: "/api/presence", Summary: "Set the caller's presence status", Tags: []string{"Presence"}},
		func(ctx context.Context, input *struct {
			UserID string `header:"X-User-Id" required:"true"`
			Body   struct {
				Status string `json:"status" required:"true"`
			}
		}) (*presenceOutput, error) {
			rec, err := svc.SetPresence(ctx, input.UserID, input.Body.Status)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &presenceOutput{}
			out.Body = presenceResponse(rec)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "presence-heartbeat", Method: http.MethodPost, Path: "/api/presence/heartbeat", Summary: "Keep the caller marked online", Tags: []string{"Presence"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *struct {
			UserID string `header:"X-User-Id" required:"true"`
		}) (*struct{}, error) {
			if err := svc.Heartbeat(ctx, input.UserID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-presence", Method: http.MethodGet, Path: "/api/presence/{user_id}", Summary: "Get one user's presence", Tags: []string{"Presence"}},
		func(ctx context.Context, input *struct {
			UserID string `path:"user_id"`
		}) (*presenceOutput, error) {
			rec, err := svc.GetPresence(ctx, input.UserID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &presenceOutput{}
			out.Body = presenceResponse(rec)
			return out, nil
		})

	type bulkPresenceOutput struct {
		Body map[string]string
	}
	huma.Register(api, huma.Operation{OperationID: "bulk-presence", Method: http.MethodPost, Path: "/api/presence/bulk", Summary: "Get presence for up to 100 users at once", Tags: []string{"Presence"}},
		func(ctx context.Context, input *struct {
			Body struct {
				UserIDs []string `json:"user_ids" required:"true"`
			}
		}) (*bulkPresenceOutput, error) {
			statuses, err := svc.BulkPresence(ctx, input.Body.UserIDs)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &bulkPresenceOutput{}
			out.Body = statuses
			return out, nil
		})

	type guildPresenceOutput struct {
		Body []presenceBody
	}
	huma.Register(api, huma.Operation{OperationID: "guild-presence", Method: http.MethodGet, Path: "/api/guilds/{guild_id}/presence", Summary: "List presence for a guild's members", Tags: []string{"Presence"}},
		func(ctx context.Context, input *struct {
			GuildID string `path:"guild_id"`
		}) (*guildPresenceOutput, error) {
			recs, err := svc.GuildPresence(ctx, input.GuildID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &guildPresenceOutput{}
			out.Body = make([]presenceBody, 0, len(recs))
			for _, rec := range recs {
				out.Body = append(out.Body, presenceResponse(rec))
			}
			return out, nil
		})
}
