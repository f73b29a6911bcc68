package model

import "context"

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	Name             string   `json:"name"`
	DisplayName      string   `json:"displayName,omitempty"`
	SupportedActions []string `json:"supportedActions,omitempty"`
}

// ModelLister reports the models a provider can use for content generation.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
