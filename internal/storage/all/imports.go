// Package all registers every built-in storage backend. Import it for side
// effects:
//
//	import _ "obsmask/internal/storage/all"
//
// Kinds made available: "postgres", "sqlite".
package all

import (
	_ "obsmask/internal/storage/postgres"
	_ "obsmask/internal/storage/sqlite"
)
