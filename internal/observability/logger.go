package observability

import (
	"io"
	"os"
	"time"

	"github.com/danmuck/udpstream/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func InitLogger(app string) zerolog.Logger {
	return InitLoggerTo(os.Stdout, app)
}

// InitLoggerTo installs a console logger writing to out as the global logger.
func InitLoggerTo(out io.Writer, app string) zerolog.Logger {
	cfg := logging.ConfigureRuntime()
	output := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
	ctx := zerolog.New(output).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	logger := ctx.Str("app", app).Logger()
	log.Logger = logger
	return logger
}
