package ui

import (
	"log/slog"
)

var appLogger = slog.With("component", "ui")

func Run(dep RuntimeDependencies) error {
	return runWithApp(dep, newFyneApp())
}
