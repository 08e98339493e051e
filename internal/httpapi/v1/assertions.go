package v1

import (
	"github.com/tinoosan/bizledger/internal/storage/memory"
	"github.com/tinoosan/bizledger/internal/storage/postgres"
)

// Compile-time assertions that both stores can back the readiness probe.
var (
	_ ReadyChecker = (*memory.Store)(nil)
	_ ReadyChecker = (*postgres.Store)(nil)
)
