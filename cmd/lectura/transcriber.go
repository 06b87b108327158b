package main

import (
	"github.com/spf13/cobra"

	"github.com/quanghia/lectura/config"
	srv "github.com/quanghia/lectura/internal/server"
)

func transcriberCMD() *cobra.Command {
	var cfgPath string
	var transcriber = &cobra.Command{
		Use:   "transcriber",
		Short: "Run the lecture transcription API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			return srv.RunTranscriber(cfg)
		},
	}
	transcriber.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return transcriber
}
