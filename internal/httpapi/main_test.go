package httpapi

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"unirecords.org/internal/obs"
)

func TestMain(m *testing.M) {
	obs.SetLogger(obs.NewLogger(io.Discard, slog.LevelInfo))
	os.Exit(m.Run())
}
