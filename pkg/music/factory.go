package music

import (
	"fmt"
	"lyrics-desktop/pkg/lrclib"
	"lyrics-desktop/pkg/netease"
	"strings"
)

// Provider 音乐提供商类型
type Provider string

const (
	// ProviderLRCLib LRCLib歌词库
	ProviderLRCLib Provider = "lrclib"
	// ProviderNetEase 网易云音乐
	ProviderNetEase Provider = "netease"
)

// Endpoints 各提供商的接口地址，空值使用默认地址
type Endpoints struct {
	LRCLib  string
	NetEase string
}

// CreateProvider 创建音乐提供商客户端
func CreateProvider(provider Provider, endpoints Endpoints) (MusicAPI, error) {
	switch provider {
	case ProviderLRCLib:
		return lrclib.NewClient(endpoints.LRCLib), nil
	case ProviderNetEase:
		return netease.NewClient(endpoints.NetEase), nil
	default:
		return nil, fmt.Errorf("unknown music provider: %s", provider)
	}
}

// CreateManager 按 names 的顺序创建提供商，未知名称跳过
func CreateManager(names []string, endpoints Endpoints) (*Manager, error) {
	var providers []MusicAPI
	for _, name := range names {
		providerType, err := GetProviderByName(name)
		if err != nil {
			logger().Warn().Err(err).Msg("Skipping provider")
			continue
		}
		provider, err := CreateProvider(providerType, endpoints)
		if err != nil {
			logger().Warn().Err(err).Str("provider", name).Msg("Failed to create provider")
			continue
		}
		providers = append(providers, provider)
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no music providers available")
	}

	return NewManager(providers), nil
}

// GetProviderByName 根据名称获取提供商
func GetProviderByName(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lrclib":
		return ProviderLRCLib, nil
	case "netease", "网易云", "163":
		return ProviderNetEase, nil
	default:
		return "", fmt.Errorf("unknown provider name: %s", name)
	}
}
