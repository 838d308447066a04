package usecase

import (
	"context"
	"errors"
	"fmt"
	"github.com/iamvkosarev/vedai/config"
	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/iamvkosarev/vedai/pkg/tavily"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"log/slog"
	"regexp"
	"strings"
)

const (
	ReplyMissingCredential = "Please set your GROQ_API_KEY in the environment to use the AI features."
	ReplySearchFailed      = "I'm sorry, I couldn't retrieve live information for that right now."

	DefaultAssistantModelName = "Llama 3"

	systemPromptFormat = `You are VedAI, an advanced AI assistant powered by Groq (running %s).
Your goal is to provide helpful, accurate, and concise responses.
%s
Always be polite and professional.`

	searchInstruction = `
If answering requires live or current information (news, weather, prices, recent events) that you do not reliably know, do not guess.
Reply with exactly [SEARCH: <query>] and nothing else, where <query> is a concise web search query.
`

	searchContextFormat = `Web search results for "%s":

%s

Using these results, answer the user's question. The user's last message was: "%s".
Answer in the same language as that message. Cite sources where possible.`

	instrumentationName = "github.com/iamvkosarev/vedai/internal/usecase"
)

var (
	ErrHistoryRequired = errors.New("conversation history is required")
	ErrEmptyCompletion = errors.New("completion provider returned no choices")
)

var searchMarker = regexp.MustCompile(`\[SEARCH:\s*(.*?)\]`)

type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (
		openai.ChatCompletionResponse,
		error,
	)
}

type SearchProvider interface {
	Search(ctx context.Context, query string) (tavily.Response, error)
}

type TokenCounter func(messages []openai.ChatCompletionMessage, model string) (int, error)

type RelayUsecaseDeps struct {
	// Completion is nil when no provider credential is configured.
	Completion CompletionClient
	// Search enables the search-augmented variant when set.
	Search      SearchProvider
	CountTokens TokenCounter
}

type RelayUsecase struct {
	RelayUsecaseDeps
	cfg               config.Groq
	completionCounter metric.Int64Counter
	searchCounter     metric.Int64Counter
}

func NewRelayUsecase(deps RelayUsecaseDeps, cfg config.Groq) *RelayUsecase {
	meter := otel.Meter(instrumentationName)
	completionCounter, err := meter.Int64Counter(
		"vedai.relay.completions",
		metric.WithDescription("Completion provider calls"),
	)
	if err != nil {
		slog.Warn("failed to create completion counter", "error", err)
	}
	searchCounter, err := meter.Int64Counter(
		"vedai.relay.searches",
		metric.WithDescription("Search provider calls"),
	)
	if err != nil {
		slog.Warn("failed to create search counter", "error", err)
	}
	return &RelayUsecase{
		RelayUsecaseDeps:  deps,
		cfg:               cfg,
		completionCounter: completionCounter,
		searchCounter:     searchCounter,
	}
}

func (r *RelayUsecase) SearchEnabled() bool {
	return r.Search != nil
}

// Complete forwards history to the completion provider and returns its reply.
// A reply carrying a search marker triggers one search and one more completion.
func (r *RelayUsecase) Complete(ctx context.Context, history []model.Message, aiModel string) (string, error) {
	if len(history) == 0 {
		return "", ErrHistoryRequired
	}
	if r.Completion == nil {
		slog.Error("completion provider credential is not configured")
		return ReplyMissingCredential, nil
	}

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "relay.complete")
	defer span.End()

	requestedModel := aiModel
	if aiModel == "" {
		aiModel = r.cfg.DefaultModel
	}
	span.SetAttributes(
		attribute.String("relay.model", aiModel),
		attribute.Int("relay.history_length", len(history)),
	)

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(
		messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: r.systemPrompt(requestedModel),
		},
	)
	for _, message := range history {
		messages = append(
			messages, openai.ChatCompletionMessage{
				Role:    parseMessageRoleToOpenAI(message.Role),
				Content: message.Content,
			},
		)
	}

	reply, err := r.createCompletion(ctx, aiModel, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if !r.SearchEnabled() {
		return reply, nil
	}

	query, ok := parseSearchMarker(reply)
	if !ok {
		return reply, nil
	}
	slog.Info("search requested by model", "query", query)

	results, err := r.search(ctx, query)
	if err != nil {
		slog.Warn("search failed", "query", query, "error", err)
		return ReplySearchFailed, nil
	}
	if strings.TrimSpace(results.Answer) == "" {
		slog.Warn("search returned no answer", "query", query)
		return ReplySearchFailed, nil
	}

	messages = append(
		messages,
		openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: reply,
		},
		openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf(searchContextFormat, query, formatSearchResults(results), lastUserMessage(history)),
		},
	)
	reply, err = r.createCompletion(ctx, aiModel, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return reply, nil
}

func (r *RelayUsecase) systemPrompt(aiModel string) string {
	modelName := aiModel
	if modelName == "" {
		modelName = DefaultAssistantModelName
	}
	var instruction string
	if r.SearchEnabled() {
		instruction = searchInstruction
	}
	return fmt.Sprintf(systemPromptFormat, modelName, instruction)
}

func (r *RelayUsecase) createCompletion(
	ctx context.Context,
	aiModel string,
	messages []openai.ChatCompletionMessage,
) (string, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "provider.completion")
	defer span.End()

	if r.CountTokens != nil {
		if tokenCount, err := r.CountTokens(messages, aiModel); err != nil {
			slog.Debug("failed to count prompt tokens", "error", err)
		} else {
			slog.Debug("prompt tokens", "count", tokenCount, "model", aiModel)
			span.SetAttributes(attribute.Int("relay.prompt_tokens", tokenCount))
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       aiModel,
		Temperature: r.cfg.Temperature,
		Messages:    messages,
		Stream:      false,
	}
	resp, err := r.Completion.CreateChatCompletion(ctx, req)
	r.count(ctx, r.completionCounter, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func (r *RelayUsecase) search(ctx context.Context, query string) (tavily.Response, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "provider.search")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", query))

	results, err := r.Search.Search(ctx, query)
	r.count(ctx, r.searchCounter, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return results, err
}

func (r *RelayUsecase) count(ctx context.Context, counter metric.Int64Counter, err error) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("error", err != nil)))
}

// parseSearchMarker returns the query of the first search marker in reply.
func parseSearchMarker(reply string) (string, bool) {
	match := searchMarker.FindStringSubmatch(reply)
	if match == nil {
		return "", false
	}
	return strings.TrimSpace(match[1]), true
}

func formatSearchResults(results tavily.Response) string {
	builder := strings.Builder{}
	builder.WriteString("Answer: ")
	builder.WriteString(strings.TrimSpace(results.Answer))
	if len(results.Results) > 0 {
		builder.WriteString("\n\nSources:")
		for _, result := range results.Results {
			builder.WriteString(fmt.Sprintf("\n- %s (%s)", result.Title, result.URL))
		}
	}
	return builder.String()
}

func lastUserMessage(history []model.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.MessageRoleUser {
			return history[i].Content
		}
	}
	return ""
}

func parseMessageRoleToOpenAI(role model.MessageRole) string {
	switch role {
	case model.MessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case model.MessageRoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
