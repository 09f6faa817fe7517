package manager

import (
	"github.com/zhubert/dispatch-core/checkout"
	"github.com/zhubert/dispatch-core/cli"
	"github.com/zhubert/dispatch-core/logger"
)

// Preflight verifies the external binaries sessions depend on. It must pass
// before any session starts; the returned error lists every missing
// required tool with its install URL.
func Preflight() error {
	return cli.ValidateRequired(cli.DefaultPrerequisites())
}

// ReclaimOrphans sweeps working copies abandoned by a crashed or killed
// prior run. It must run before any session is active: the sweep is
// unconditional and does not consult the registry. Failure is logged as a
// warning, never fatal — a leftover directory is not worth refusing to
// start over.
func ReclaimOrphans(checkouts *checkout.Service) int {
	log := logger.WithComponent("manager")

	removed, err := checkouts.ReclaimOrphans()
	if err != nil {
		log.Warn("orphan reclaim failed", "error", err)
		return 0
	}
	if removed > 0 {
		log.Info("reclaimed orphaned working copies", "count", removed)
	}
	return removed
}
