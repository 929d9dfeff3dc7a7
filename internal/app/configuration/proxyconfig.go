package configuration

import (
	"context"

	"github.com/form3tech-oss/pact-record-proxy/internal/app/pactrecord"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
)

func NewFromEnv() (pactrecord.Config, error) {
	ctx := context.Background()

	var config pactrecord.Config
	err := envconfig.Process(ctx, &config)
	if err != nil {
		return config, errors.Wrap(err, "process env config")
	}
	return config, nil
}

func ConfigureProxy(config pactrecord.Config) error {
	return StartServer(&config.ServerAddress, &config)
}
