package main

import (
	"github.com/spf13/cobra"

	"github.com/quanghia/lectura/config"
	srv "github.com/quanghia/lectura/internal/server"
)

func chatCMD() *cobra.Command {
	var cfgPath string
	var chat = &cobra.Command{
		Use:   "chat",
		Short: "Run the chat message API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			return srv.RunChat(cfg)
		},
	}
	chat.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return chat
}
