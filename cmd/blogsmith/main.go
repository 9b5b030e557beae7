package main

import (
	"blogsmith/cmd/cmd"
	"blogsmith/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
