package main

import (
	"fmt"
	"log"
	"os"

	"github.com/m3rciful/edubot/bot/app"
	corecmd "github.com/m3rciful/edubot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			appCfg, ok := cfg.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return app.Bootstrap(appCfg)
		},
	})
	if err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}
