// labmate is an AI teaching assistant that reads the student's terminal.
package main

import (
	"fmt"
	"os"

	"github.com/linanwx/labmate/cmd"
	"github.com/linanwx/labmate/config"
	"github.com/linanwx/labmate/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	dir, _ := config.ConfigDir()
	if err := logger.Init(cfg.BuildLoggerConfig(), dir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
	}
	cmd.Execute()
}
