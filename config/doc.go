// Package config loads the listen client configuration.
//
// A Config has five sections: channel (how to reach the listen endpoint), pool (how
// many channels and how to reopen them), nats (where collected documents go), metrics
// and log.
//
// Loader builds a Config from defaults, then each layer file in order (JSON or YAML,
// merged key by key so a layer only overrides what it sets), then LISTEN_* environment
// variables:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.yaml")
//	loader.AddLayer("config/production.json") // overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		return err
//	}
//	ch, err := listen.Open(ctx, cfg.Channel.BaseURL, cfg.Channel.Database,
//		cfg.Channel.Credential, cfg.ChannelOptions()...)
//
// Durations are written as Go duration strings ("30s", "250ms"). Config files must be
// regular files under 10MB; relative paths may not leave the working directory.
package config
