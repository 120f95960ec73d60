package chat

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/parleychat/parley/internal/llm"
	"github.com/parleychat/parley/internal/mcp"
)

// User-facing error strings. Provider error bodies are never surfaced
// directly; they are mapped onto this fixed set.
const (
	GenericProviderErrorMessage = "An error occurred. Please try again later."
	ImageModalityErrorMessage   = "The selected model does not support image inputs. Remove attached images or choose a vision model."
	RoundLimitErrorMessage      = "Tool loop exceeded the maximum number of rounds."
	StreamingFailedMessage      = "Streaming failed"
)

// DefaultMaxRounds bounds the tool loop when no cap is configured.
const DefaultMaxRounds = 8

// ToolCallRecord is the durable record of one executed tool call,
// written before the corresponding result frame is emitted.
type ToolCallRecord struct {
	UserID        int64
	DialogID      string
	ToolCallID    string
	ToolName      string
	ArgumentsJSON string
	ResultText    string
	ErrorText     string
}

// ToolExecutor runs one finalized tool call and returns its textual
// result. Errors terminate the turn through the orchestrator's error
// taxonomy.
type ToolExecutor func(ctx context.Context, call llm.ToolCallRequest) (string, error)

// EventRecorder persists one tool-call event.
type EventRecorder func(ctx context.Context, rec ToolCallRecord) error

// ToolsetLoader supplies the current tool definitions, typically
// through a ToolsetCache.
type ToolsetLoader interface {
	GetOrRefresh(ctx context.Context) ([]llm.ToolSpec, error)
}

// Orchestrator drives the provider conversation loop for one chat
// turn: streaming provider output to the caller while transparently
// running bounded tool-invocation rounds in between.
type Orchestrator struct {
	Resolve     ProviderResolver
	NewStreamer func(info ProviderInfo) llm.Streamer
	ToolModels  map[string]bool
	Toolset     ToolsetLoader
	Execute     ToolExecutor
	Record      EventRecorder
	MaxRounds   int
}

// TurnRequest is one chat turn. Messages are owned by this call and
// mutated only by appending synthetic assistant/tool messages between
// rounds. Disconnected is polled once per received chunk; a true
// result terminates the turn silently.
type TurnRequest struct {
	UserID       int64
	DialogID     string
	Model        string
	Messages     []llm.ChatMessage
	Disconnected func() bool
}

// Stream runs the turn, producing the frame sequence the HTTP layer
// relays as Server-Sent-Events.
func (o *Orchestrator) Stream(ctx context.Context, req TurnRequest) *FrameStream {
	return newFrameStream(ctx, func(ctx context.Context, frames chan<- []byte) {
		o.run(ctx, req, frames)
	})
}

func (o *Orchestrator) run(ctx context.Context, req TurnRequest, frames chan<- []byte) {
	logger := log.With().
		Str("model", req.Model).
		Str("dialog_id", req.DialogID).
		Int64("user_id", req.UserID).
		Logger()
	defer logger.Debug().Msg("closing chat stream")

	info := o.Resolve(req.Model)
	client := o.NewStreamer(info)

	maxRounds := o.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	var tools []llm.ToolSpec
	if o.ToolModels[req.Model] && o.Toolset != nil {
		var err error
		tools, err = o.Toolset.GetOrRefresh(ctx)
		if err != nil {
			o.emitError(ctx, frames, logger, err)
			return
		}
	}

	messages := req.Messages

	for round := 0; round < maxRounds; round++ {
		stream, err := client.StreamChat(ctx, llm.ChatRequest{
			Model:    req.Model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			o.emitError(ctx, frames, logger, err)
			return
		}

		acc := llm.NewToolCallAccumulator()
		var text strings.Builder
		disconnected := false

		recvErr := func() error {
			defer stream.Close()
			for {
				ev, err := stream.Recv()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				if req.Disconnected != nil && req.Disconnected() {
					disconnected = true
					return nil
				}
				if len(ev.Raw) > 0 && !send(ctx, frames, ev.Raw) {
					disconnected = true
					return nil
				}
				text.WriteString(ev.Content)
				for _, delta := range ev.ToolCalls {
					acc.Add(delta)
				}
			}
		}()

		if disconnected {
			logger.Debug().Int("round", round).Msg("client disconnected")
			return
		}
		if recvErr != nil {
			o.emitError(ctx, frames, logger, recvErr)
			return
		}

		calls := acc.Calls()
		if len(calls) == 0 {
			return
		}

		if round == maxRounds-1 {
			logger.Warn().Int("rounds", maxRounds).Msg("tool loop hit round cap")
			send(ctx, frames, errorFrame(RoundLimitErrorMessage))
			return
		}

		messages = append(messages, llm.ChatMessage{
			Role:      llm.RoleAssistant,
			Content:   text.String(),
			ToolCalls: calls,
		})

		for _, call := range calls {
			if !send(ctx, frames, toolStatusFrame("start", call.ID, call.Function.Name)) {
				return
			}

			result, execErr := o.Execute(ctx, call)

			rec := ToolCallRecord{
				UserID:        req.UserID,
				DialogID:      req.DialogID,
				ToolCallID:    call.ID,
				ToolName:      call.Function.Name,
				ArgumentsJSON: call.Function.Arguments,
				ResultText:    result,
			}
			if execErr != nil {
				rec.ResultText = ""
				rec.ErrorText = execErr.Error()
			}
			if o.Record != nil {
				if err := o.Record(ctx, rec); err != nil {
					logger.Error().Err(err).Str("tool", call.Function.Name).Msg("failed to persist tool call event")
					send(ctx, frames, errorFrame(StreamingFailedMessage))
					return
				}
			}

			if execErr != nil {
				logger.Error().Err(execErr).Str("tool", call.Function.Name).Msg("tool execution failed")
				o.emitError(ctx, frames, logger, execErr)
				return
			}

			if !send(ctx, frames, toolCallFrame(ToolCallResult{
				ToolCallID:    call.ID,
				ToolName:      call.Function.Name,
				ArgumentsJSON: call.Function.Arguments,
				Content:       result,
			})) {
				return
			}

			messages = append(messages, llm.ChatMessage{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
}

// emitError maps err onto the user-facing taxonomy and sends exactly
// one terminal error frame. Remote tool transport errors carry a
// user-safe message and are surfaced verbatim; provider errors map to
// a fixed string pair; everything else is genericized.
func (o *Orchestrator) emitError(ctx context.Context, frames chan<- []byte, logger zerolog.Logger, err error) {
	var transportErr *mcp.TransportError
	var apiErr *llm.APIError

	switch {
	case errors.As(err, &transportErr):
		logger.Warn().Err(err).Msg("tool transport error")
		send(ctx, frames, errorFrame(transportErr.Error()))
	case errors.As(err, &apiErr):
		logger.Error().Err(err).Msg("provider error")
		send(ctx, frames, errorFrame(mapProviderError(apiErr)))
	default:
		logger.Error().Err(err).Msg("chat turn failed")
		send(ctx, frames, errorFrame(StreamingFailedMessage))
	}
}

// mapProviderError picks the user-safe string for a provider failure.
// The raw body is pattern-matched for the image-modality rejection the
// common providers emit; anything else gets the generic message.
func mapProviderError(err *llm.APIError) string {
	joined := strings.ToLower(err.Error())
	if strings.Contains(joined, "image input modality is not enabled") ||
		strings.Contains(joined, "image modality") ||
		strings.Contains(joined, "does not support image") {
		return ImageModalityErrorMessage
	}
	return GenericProviderErrorMessage
}

func send(ctx context.Context, frames chan<- []byte, frame []byte) bool {
	select {
	case frames <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}
