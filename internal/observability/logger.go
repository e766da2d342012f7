package observability

import (
	"github.com/danmuck/ghostnet/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger applies the runtime logging profile and tags every line with
// the node name.
func InitLogger(node string) zerolog.Logger {
	base := logging.Apply(logging.Resolve(logging.ProfileRuntime))
	logger := base.With().Str("node", node).Logger()
	log.Logger = logger
	return logger
}
