package modelbridge

import (
	"log/slog"

	"github.com/casualjim/modelbridge/internal/transport"
	"github.com/casualjim/modelbridge/provider/models"
	"github.com/fogfish/opts"
)

var (
	// WithLogger substitutes the logger used by the bridge and, unless they
	// are overridden too, its adapters.
	WithLogger = opts.ForName[Bridge, *slog.Logger]("log")

	// WithTransport substitutes the transport shared by all built-in adapters
	// and the catalog fetcher.
	WithTransport = opts.ForName[Bridge, *transport.Client]("transport")

	// WithFetcher substitutes the model catalog fetcher, e.g. to install a
	// metadata rule set.
	WithFetcher = opts.ForName[Bridge, *models.Fetcher]("fetcher")
)
