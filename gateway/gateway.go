// Package gateway provides the LLM gateway server: one canonical chat
// endpoint fanned out to provider-specific runtime adapters, streamed back
// to clients as Server-Sent Events.
package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"go.uber.org/zap"

	"github.com/crosswireco/crosswire/gateway/header"
	"github.com/crosswireco/crosswire/gateway/worker"
	"github.com/crosswireco/crosswire/pkg/apierror"
	"github.com/crosswireco/crosswire/pkg/auth"
	"github.com/crosswireco/crosswire/pkg/eventstream/nop"
	"github.com/crosswireco/crosswire/pkg/llm"
	"github.com/crosswireco/crosswire/pkg/protocol"
	"github.com/crosswireco/crosswire/pkg/runtime"
)

// Gateway is the LLM gateway server. It authorizes inbound requests,
// selects provider credentials from the key vault, dispatches to the
// provider's runtime adapter, and streams the normalized SSE body back.
type Gateway struct {
	config        Config
	logger        *zap.Logger
	server        *fiber.App
	gate          *auth.Gate
	vault         *auth.Vault
	pool          *worker.Pool
	headerHandler *header.Handler
	httpClient    *http.Client
}

// New creates a new Gateway.
func New(config Config, logger *zap.Logger) (*Gateway, error) {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	// Add compression middleware to handle responses
	app.Use(compress.New())

	publisher := config.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	wp, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		config:        config,
		logger:        logger,
		server:        app,
		gate:          auth.NewGate(config.AccessCodes),
		vault:         auth.NewVault(auth.SelectMode(config.KeySelectMode)),
		pool:          wp,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			// LLM requests can be slow, especially with thinking blocks
			Timeout: 5 * time.Minute,
		},
	}

	app.Post("/webapi/chat/:provider", g.handleChat)
	app.Get("/webapi/models/:provider", g.handleModels)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	return g, nil
}

// Run starts the gateway server on the configured listening address.
func (g *Gateway) Run() error {
	g.logger.Info("starting gateway server",
		zap.String("listen", g.config.ListenAddr),
	)

	return g.server.Listen(g.config.ListenAddr)
}

// RunWithListener starts the gateway server using the provided listener.
func (g *Gateway) RunWithListener(listener net.Listener) error {
	g.logger.Info("starting gateway server",
		zap.String("listen", listener.Addr().String()),
	)

	return g.server.Listener(listener)
}

// Close gracefully shuts down the gateway and waits for the worker pool to drain.
func (g *Gateway) Close() error {
	err := g.server.Shutdown()
	g.pool.Close()
	return err
}

// Test dispatches a request through the fiber app without a network hop.
// Exposed for tests.
func (g *Gateway) Test(req *http.Request, timeoutMs ...int) (*http.Response, error) {
	return g.server.Test(req, timeoutMs...)
}

// handleChat serves POST /webapi/chat/:provider.
func (g *Gateway) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()
	providerType := c.Params("provider")

	// Authorization runs before any provider or network work.
	authCtx := g.headerHandler.DecodeAuth(c)
	if err := g.gate.Check(authCtx); err != nil {
		return g.writeError(c, err, providerType)
	}

	var payload llm.ChatStreamPayload
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		g.logger.Warn("malformed chat payload",
			zap.String("provider", providerType),
			zap.Error(err),
		)
		return g.writeError(c, apierror.New(apierror.AgentRuntimeError, providerType, map[string]any{
			"message": "malformed chat payload: " + err.Error(),
		}), providerType)
	}

	// This endpoint only speaks the streaming wire protocol.
	if !payload.Streaming() {
		return g.writeError(c, apierror.New(apierror.AgentRuntimeError, providerType, map[string]any{
			"message": "non-streaming responses are not supported; omit stream or set it to true",
		}), providerType)
	}

	apiKey := authCtx.APIKey
	if apiKey == "" {
		apiKey = g.vault.Pick(g.provider(providerType).KeyPool)
	}

	rt, err := g.runtime(providerType, apiKey)
	if err != nil {
		return g.writeError(c, err, providerType)
	}

	g.logger.Debug("dispatching chat",
		zap.String("provider", providerType),
		zap.String("model", payload.Model),
		zap.Int("message_count", len(payload.Messages)),
	)

	// Use context.Background() instead of c.Context() because fasthttp
	// recycles its RequestCtx after the handler returns, but the stream is
	// consumed asynchronously while the body is written out. Early client
	// disconnects are propagated through the body stream's Close instead.
	resp, err := rt.Chat(context.Background(), &payload, runtime.ChatOptions{
		APIKey:    apiKey,
		Headers:   g.headerHandler.ForwardHeaders(c),
		Callbacks: g.lifecycle(providerType, payload.Model, authCtx.UserID, startTime),
	})
	if err != nil {
		return g.writeError(c, err, providerType)
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			c.Set(k, v)
		}
	}

	// Set the body stream with unknown size (-1), which triggers chunked
	// transfer encoding in fasthttp and per-chunk flushing to the client.
	c.Context().Response.SetBodyStream(resp.Body, -1)

	return nil
}

// handleModels serves GET /webapi/models/:provider.
func (g *Gateway) handleModels(c *fiber.Ctx) error {
	providerType := c.Params("provider")

	authCtx := g.headerHandler.DecodeAuth(c)
	if err := g.gate.Check(authCtx); err != nil {
		return g.writeError(c, err, providerType)
	}

	apiKey := authCtx.APIKey
	if apiKey == "" {
		apiKey = g.vault.Pick(g.provider(providerType).KeyPool)
	}

	rt, err := g.runtime(providerType, apiKey)
	if err != nil {
		return g.writeError(c, err, providerType)
	}

	lister, ok := rt.(runtime.ModelLister)
	if !ok {
		// Fixed-catalog providers list nothing.
		return c.JSON([]string{})
	}

	models, err := lister.Models(c.Context())
	if err != nil {
		return g.writeError(c, err, providerType)
	}

	return c.JSON(models)
}

// runtime builds the adapter for one request. Adapters are cheap value
// objects around the shared HTTP client, so per-request construction keeps
// base URL and key pool changes picked up without locking.
func (g *Gateway) runtime(providerType, apiKey string) (runtime.Runtime, error) {
	settings := g.provider(providerType)

	return runtime.New(providerType, runtime.Config{
		BaseURL:    settings.BaseURL,
		APIKey:     apiKey,
		HTTPClient: g.httpClient,
		Logger:     g.logger,
	})
}

func (g *Gateway) provider(providerType string) ProviderSettings {
	if g.config.Providers == nil {
		return ProviderSettings{}
	}
	return g.config.Providers[providerType]
}

// lifecycle builds the callback set that counts chunks and enqueues the
// completed-turn event. Aborted streams never reach OnCompletion, so they
// publish nothing.
func (g *Gateway) lifecycle(providerType, model, userID string, startTime time.Time) protocol.Callbacks {
	chunks := 0

	return protocol.Callbacks{
		OnStart: func() error {
			g.logger.Debug("stream started",
				zap.String("provider", providerType),
				zap.String("model", model),
			)
			return nil
		},
		OnToken: func() error {
			chunks++
			return nil
		},
		OnToolCall: func() error {
			chunks++
			return nil
		},
		OnCompletion: func() error {
			g.logger.Debug("stream completed",
				zap.String("provider", providerType),
				zap.String("model", model),
				zap.Int("chunks", chunks),
				zap.Duration("duration", time.Since(startTime)),
			)

			g.pool.Enqueue(worker.Job{
				Provider:    providerType,
				Model:       model,
				UserID:      userID,
				StartedAt:   startTime,
				CompletedAt: time.Now(),
				ChunkCount:  chunks,
			})
			return nil
		},
	}
}

// writeError reduces any failure to the unified error envelope with its
// mapped status.
func (g *Gateway) writeError(c *fiber.Ctx, err error, providerType string) error {
	ce := apierror.Normalize(err, providerType)
	status := apierror.StatusFor(ce.ErrorType, g.logger)

	g.logger.Warn("request failed",
		zap.String("provider", providerType),
		zap.String("error_type", string(ce.ErrorType)),
		zap.Int("status", status),
	)

	return c.Status(status).JSON(llm.ErrorResponse{
		ErrorType: string(ce.ErrorType),
		Body: llm.ErrorBody{
			Error:    ce.Body,
			Provider: ce.Provider,
		},
	})
}
