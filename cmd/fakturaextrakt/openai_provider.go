package main

import (
	"github.com/kvitto/fakturaextrakt"
	aiopenai "github.com/kvitto/fakturaextrakt/aiprovider/openai"
)

// newOpenAIProvider builds the default AI adapter. It is split out from
// profile.go purely so the openai-go dependency stays behind one small,
// obviously-optional file.
func newOpenAIProvider(apiKey string) fakturaextrakt.AIProvider {
	return aiopenai.New(apiKey, aiopenai.DefaultConfig(), logger)
}
