package dd_attribution

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mta/model/model"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

const DefaultOpenAIModel = "gpt-4o-mini"

const systemPrompt = "You are a marketing attribution analyst. Given a customer journey that ended in a conversion, " +
	"estimate how much each touchpoint contributed to the conversion. Respond only with a JSON object of the form " +
	`{"weights": [{"position": <touchpoint position>, "weight": <non negative number>}]}` +
	" with one entry per touchpoint. Weights do not need to sum to 1."

// ChatCompletionClient subset of the openai client used for inference.
type ChatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMJudgmentProvider infers touchpoint weights with a chat completion model.
// Prompt construction and response parsing stay inside this provider.
type LLMJudgmentProvider struct {
	client ChatCompletionClient
	model  string
}

func NewLLMJudgmentProvider(apiKey, chatModel string) *LLMJudgmentProvider {
	return NewLLMJudgmentProviderWithClient(openai.NewClient(apiKey), chatModel)
}

func NewLLMJudgmentProviderWithClient(client ChatCompletionClient, chatModel string) *LLMJudgmentProvider {
	if chatModel == "" {
		chatModel = DefaultOpenAIModel
	}
	return &LLMJudgmentProvider{client: client, model: chatModel}
}

type promptTouchpoint struct {
	Position        int     `json:"position"`
	ChannelID       string  `json:"channel_id"`
	Type            string  `json:"type"`
	Timestamp       string  `json:"timestamp"`
	Cost            float64 `json:"cost"`
	TimeSpent       float64 `json:"time_spent"`
	PagesViewed     int     `json:"pages_viewed"`
	EngagementScore float64 `json:"engagement_score"`
}

type promptJourney struct {
	ConversionValue float64            `json:"conversion_value"`
	Touchpoints     []promptTouchpoint `json:"touchpoints"`
}

func buildUserPrompt(journey model.JourneyContext) (string, error) {
	input := promptJourney{ConversionValue: journey.ConversionValue,
		Touchpoints: make([]promptTouchpoint, 0, len(journey.Touchpoints))}
	for _, touchpoint := range journey.Touchpoints {
		input.Touchpoints = append(input.Touchpoints, promptTouchpoint{
			Position:        touchpoint.PositionInJourney,
			ChannelID:       touchpoint.ChannelID,
			Type:            touchpoint.Type,
			Timestamp:       touchpoint.Timestamp.UTC().Format(time.RFC3339),
			Cost:            touchpoint.Cost,
			TimeSpent:       touchpoint.TimeSpent,
			PagesViewed:     touchpoint.PagesViewed,
			EngagementScore: touchpoint.EngagementScore,
		})
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return "Journey:\n" + string(inputJSON), nil
}

func (provider *LLMJudgmentProvider) Infer(ctx context.Context, journey model.JourneyContext) (map[int]float64, error) {
	logCtx := log.WithFields(log.Fields{
		"journey_id":  journey.JourneyID,
		"model_type":  journey.ModelType,
		"chat_model":  provider.model,
		"touchpoints": len(journey.Touchpoints),
	})

	userPrompt, err := buildUserPrompt(journey)
	if err != nil {
		return nil, model.NewProviderFailureError(err, "failed to build judgment prompt")
	}

	request := openai.ChatCompletionRequest{
		Model: provider.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	response, err := provider.client.CreateChatCompletion(ctx, request)
	if err != nil {
		logCtx.WithError(err).Error("Chat completion failed.")
		return nil, model.NewProviderFailureError(err, "chat completion failed")
	}
	if len(response.Choices) == 0 {
		logCtx.Error("Chat completion returned no choices.")
		return nil, model.NewProviderFailureError(nil, "chat completion returned no choices")
	}

	weights, err := parseWeightsResponse(response.Choices[0].Message.Content)
	if err != nil {
		logCtx.WithError(err).WithField("finish_reason", response.Choices[0].FinishReason).
			Error("Malformed judgment response.")
		return nil, model.NewProviderFailureError(err, "malformed judgment response")
	}
	return weights, nil
}

type weightsResponse struct {
	Weights []struct {
		Position int      `json:"position"`
		Weight   *float64 `json:"weight"`
	} `json:"weights"`
}

// parseWeightsResponse accepts {"weights": [{"position": 1, "weight": 0.5}]} or
// a flat {"1": 0.5} object, optionally wrapped in a markdown code block.
func parseWeightsResponse(content string) (map[int]float64, error) {
	start, end := strings.Index(content, "{"), strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no json object in response")
	}
	raw := []byte(content[start : end+1])

	var structured weightsResponse
	if err := json.Unmarshal(raw, &structured); err == nil && len(structured.Weights) > 0 {
		weights := make(map[int]float64, len(structured.Weights))
		for _, entry := range structured.Weights {
			if entry.Weight == nil {
				return nil, fmt.Errorf("missing weight for position %d", entry.Position)
			}
			weights[entry.Position] += *entry.Weight
		}
		return weights, nil
	}

	var flat map[string]float64
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, errors.Wrap(err, "failed to decode weights")
	}
	if len(flat) == 0 {
		return nil, errors.New("empty weights")
	}
	weights := make(map[int]float64, len(flat))
	for key, weight := range flat {
		position, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("invalid position %q", key)
		}
		weights[position] = weight
	}
	return weights, nil
}
