package handlers

import (
	"os"
	"testing"

	"github.com/umakantv/go-utils/logger"
)

// TestMain initializes the go-utils global logger, which the code under test
// uses and which production wires up in server.StartServer.
func TestMain(m *testing.M) {
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})
	os.Exit(m.Run())
}
