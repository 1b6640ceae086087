package services

import (
	"fmt"
	"time"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/conferencing"
	"github.com/spf13/viper"
)

// NewProvider builds the conferencing provider selected by the settings.
func NewProvider() (conferencing.Provider, error) {
	tokenDuration := time.Second * time.Duration(viper.GetInt("calling.token_duration"))

	var provider conferencing.Provider
	switch driver := viper.GetString("conferencing.provider"); driver {
	case "", "livekit":
		provider = conferencing.NewLiveKitProvider(conferencing.LiveKitConfig{
			Endpoint:        viper.GetString("calling.endpoint"),
			ApiKey:          viper.GetString("calling.api_key"),
			ApiSecret:       viper.GetString("calling.api_secret"),
			TokenDuration:   tokenDuration,
			EmptyTimeout:    viper.GetUint32("calling.empty_timeout_duration"),
			MaxParticipants: viper.GetUint32("calling.max_participants"),
		})
	case "memory":
		provider = conferencing.NewMemoryProvider(viper.GetString("calling.api_secret"), tokenDuration)
	default:
		return nil, fmt.Errorf("unknown conferencing provider %q", driver)
	}

	if viper.GetBool("conferencing.breaker.enabled") {
		provider = conferencing.NewBreakerProvider(provider, conferencing.BreakerConfig{
			MaxRequests:      viper.GetUint32("conferencing.breaker.max_requests"),
			Interval:         viper.GetDuration("conferencing.breaker.interval"),
			Timeout:          viper.GetDuration("conferencing.breaker.timeout"),
			FailureThreshold: viper.GetUint32("conferencing.breaker.failure_threshold"),
		})
	}

	return provider, nil
}
