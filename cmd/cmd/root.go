package cmd

import (
	"blogsmith/cmd/handlers"
)

// Execute runs the CLI.
func Execute() {
	handlers.Execute()
}
