package openai

import (
	"context"
	"errors"
	"lyrics-desktop/pkg/ai"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

var _ ai.AiInterface = (*openAi)(nil)

type openAi struct {
	model  string
	client *openai.Client
}

// NewOpenAi 创建兼容 OpenAI 接口的客户端，baseURL 为空时使用官方地址
func NewOpenAi(apiKey, modelName, baseURL string) ai.AiInterface {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAi{model: modelName, client: openai.NewClientWithConfig(cfg)}
}

func (o *openAi) Name() string {
	return "openai"
}

func (o *openAi) HandleText(ctx context.Context, msg string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: msg,
			},
		},
		MaxTokens: 200,
	})
	if err != nil {
		log.Error().Err(err).Msg("could not get response from openai")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}
