package dd_attribution

import (
	"context"
	"errors"
	"testing"
	"time"

	"mta/model/model"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

type fakeChatClient struct {
	content  string
	choices  int
	err      error
	requests []openai.ChatCompletionRequest
}

func (client *fakeChatClient) CreateChatCompletion(ctx context.Context,
	request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {

	client.requests = append(client.requests, request)
	if client.err != nil {
		return openai.ChatCompletionResponse{}, client.err
	}
	response := openai.ChatCompletionResponse{}
	for i := 0; i < client.choices; i++ {
		response.Choices = append(response.Choices, openai.ChatCompletionChoice{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: client.content},
		})
	}
	return response, nil
}

func getTestJourneyContext() model.JourneyContext {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return model.JourneyContext{
		JourneyID:       "j1",
		ModelType:       model.AttributionModelDataDriven,
		ConversionValue: 150,
		Touchpoints: []model.Touchpoint{
			{ID: "t1", ChannelID: "search", Type: model.TouchpointTypeClick, Timestamp: start, PositionInJourney: 1},
			{ID: "t2", ChannelID: "email", Type: model.TouchpointTypeView, Timestamp: start.Add(time.Hour),
				PositionInJourney: 2, EngagementScore: 0.8},
		},
	}
}

func TestLLMJudgmentProviderInfer(t *testing.T) {
	client := &fakeChatClient{choices: 1,
		content: `{"weights": [{"position": 1, "weight": 0.7}, {"position": 2, "weight": 0.3}]}`}
	provider := NewLLMJudgmentProviderWithClient(client, "")

	weights, err := provider.Infer(context.Background(), getTestJourneyContext())
	assert.Nil(t, err)
	assert.Equal(t, map[int]float64{1: 0.7, 2: 0.3}, weights)

	assert.Len(t, client.requests, 1)
	request := client.requests[0]
	assert.Equal(t, DefaultOpenAIModel, request.Model)
	assert.Len(t, request.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, request.Messages[0].Role)
	assert.Contains(t, request.Messages[1].Content, `"channel_id":"email"`)
	assert.Contains(t, request.Messages[1].Content, `"conversion_value":150`)
}

func TestLLMJudgmentProviderFailures(t *testing.T) {
	t.Run("ClientError", func(t *testing.T) {
		provider := NewLLMJudgmentProviderWithClient(&fakeChatClient{err: errors.New("rate limited")}, "m")
		_, err := provider.Infer(context.Background(), getTestJourneyContext())
		assert.True(t, errors.Is(err, model.ErrProviderFailure))
	})

	t.Run("NoChoices", func(t *testing.T) {
		provider := NewLLMJudgmentProviderWithClient(&fakeChatClient{}, "m")
		_, err := provider.Infer(context.Background(), getTestJourneyContext())
		assert.True(t, errors.Is(err, model.ErrProviderFailure))
	})

	t.Run("Malformed", func(t *testing.T) {
		provider := NewLLMJudgmentProviderWithClient(&fakeChatClient{choices: 1, content: "search deserves it"}, "m")
		_, err := provider.Infer(context.Background(), getTestJourneyContext())
		assert.True(t, errors.Is(err, model.ErrProviderFailure))
	})
}

func TestParseWeightsResponse(t *testing.T) {
	weights, err := parseWeightsResponse("```json\n{\"1\": 2, \"2\": 1.5}\n```")
	assert.Nil(t, err)
	assert.Equal(t, map[int]float64{1: 2, 2: 1.5}, weights)

	weights, err = parseWeightsResponse(`{"weights": [{"position": 1, "weight": 1}, {"position": 1, "weight": 2}]}`)
	assert.Nil(t, err)
	assert.Equal(t, map[int]float64{1: 3}, weights)

	_, err = parseWeightsResponse(`{"weights": [{"position": 1}]}`)
	assert.NotNil(t, err)

	_, err = parseWeightsResponse(`{"first": 1}`)
	assert.NotNil(t, err)

	_, err = parseWeightsResponse(`{}`)
	assert.NotNil(t, err)

	_, err = parseWeightsResponse(`no json`)
	assert.NotNil(t, err)
}
