package memory

import (
	"github.com/tinoosan/bizledger/internal/service/account"
	"github.com/tinoosan/bizledger/internal/service/condition"
	"github.com/tinoosan/bizledger/internal/service/journal"
	"github.com/tinoosan/bizledger/internal/service/sales"
	"github.com/tinoosan/bizledger/internal/service/schedule"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ account.Repo     = (*Store)(nil)
	_ account.Writer   = (*Store)(nil)
	_ condition.Repo   = (*Store)(nil)
	_ condition.Writer = (*Store)(nil)
	_ sales.Repo       = (*Store)(nil)
	_ sales.Writer     = (*Store)(nil)
	_ schedule.Repo    = (*Store)(nil)
	_ schedule.Writer  = (*Store)(nil)
	_ journal.Repo     = (*Store)(nil)
	_ journal.Writer   = (*Store)(nil)
)
