// Package register registers all persistence backends.
package register

import (
	// register.
	_ "go.reforestar.dev/planting/persistence/memory"
	_ "go.reforestar.dev/planting/persistence/mongodb"
	_ "go.reforestar.dev/planting/persistence/sqlite"
)
