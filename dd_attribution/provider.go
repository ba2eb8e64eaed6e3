package dd_attribution

import (
	C "mta/config"
	"mta/model/model"

	log "github.com/sirupsen/logrus"
)

// GetJudgmentProviders providers for data_driven and custom models. data_driven
// uses the chat completion model when an OpenAI key is configured.
func GetJudgmentProviders() (dataDriven model.JudgmentProvider, custom model.JudgmentProvider) {
	custom = EngagementJudgmentProvider{}

	config := C.GetConfig()
	if config == nil || config.OpenAI.APIKey == "" {
		log.Info("OpenAI not configured. Using engagement weights for data driven attribution.")
		return EngagementJudgmentProvider{}, custom
	}

	llmProvider := NewLLMJudgmentProvider(config.OpenAI.APIKey, config.OpenAI.Model)
	dataDriven = NewBreakerJudgmentProvider("openai_judgment", llmProvider, 0, 0)
	return dataDriven, custom
}
