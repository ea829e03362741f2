package main

import (
	"github.com/notegraph/backend/internal/server"
	"github.com/notegraph/backend/internal/util"
	"github.com/notegraph/backend/pkg/logger"
	"github.com/notegraph/backend/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
