package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "lectura"}

	root.AddCommand(chatCMD(), transcriberCMD(), migrateCMD())
	_ = root.Execute()
}
