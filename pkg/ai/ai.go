package ai

import "context"

// AiInterface 大模型客户端，目前只用于从媒体标题中提取歌曲信息
type AiInterface interface {
	Name() string
	HandleText(ctx context.Context, msg string) (string, error)
}
