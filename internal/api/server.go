package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Warehouser-dev/wryft-chat/internal/ephemeral"
	"github.com/Warehouser-dev/wryft-chat/internal/presence"
)

// PresenceService is the presence engine as the HTTP layer sees it.
type PresenceService interface {
	SetPresence(ctx context.Context, userID, status string) (presence.Record, error)
	Heartbeat(ctx context.Context, userID string) error
	GetPresence(ctx context.Context, userID string) (presence.Record, error)
	BulkPresence(ctx context.Context, userIDs []string) (map[string]string, error)
	GuildPresence(ctx context.Context, guildID string) ([]presence.Record, error)
}

// TypingService is one typing indicator table (channel or DM flavored).
type TypingService interface {
	Start(ctx context.Context, topicID, userID string) error
	Stop(ctx context.Context, topicID, userID string) error
	List(ctx context.Context, topicID string) ([]ephemeral.Typist, error)
}

// VoiceService tracks who is in which voice channel.
type VoiceService interface {
	Join(ctx context.Context, channelID, userID, peerID string) error
	Leave(ctx context.Context, channelID, userID string) error
	Refresh(ctx context.Context, channelID, userID string) error
	GuildVoice(ctx context.Context, guildID string) ([]ephemeral.ChannelUsers, error)
}

// Publisher pushes a payload to every subscriber of a topic.
type Publisher interface {
	Publish(topic, payload string)
}

// Deps collects everything the HTTP surface is wired to.
type Deps struct {
	Presence      PresenceService
	ChannelTyping TypingService
	DMTyping      TypingService
	Voice         VoiceService
	Bus           Publisher

	// WS handles the raw websocket upgrade; it stays outside huma.
	WS http.Handler
}

func NewServer(deps Deps) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Wryft Gateway API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	if deps.WS != nil {
		router.Get("/ws", deps.WS.ServeHTTP)
	}
	router.Handle("/metrics", promhttp.Handler())

	registerHealthHandlers(api)
	registerPresenceHandlers(api, deps.Presence)
	registerTypingHandlers(api, deps.ChannelTyping, deps.DMTyping, deps.Bus)
	registerVoiceHandlers(api, deps.Voice)

	return router
}

func registerHealthHandlers(api huma.API) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Liveness probe", Tags: []string{"Misc"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, presence.ErrInvalidStatus), errors.Is(err, presence.ErrTooManyIDs):
		return huma.Error400BadRequest(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
