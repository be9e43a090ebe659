package app

const (
	Name           = "wedgego"
	SourceURL      = "https://git.skobk.in/skobkin/wedgego"
	ConfigFilename = "config.json"
	DBFilename     = "journal.db"
	LogFilename    = "app.log"
	TrayIconPath   = "internal/resources/tray/icon.png"
)
