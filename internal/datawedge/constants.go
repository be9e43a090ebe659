package datawedge

// Broadcast actions.
const (
	ActionAPI          = "com.symbol.datawedge.api.ACTION"
	ActionResult       = "com.symbol.datawedge.api.RESULT_ACTION"
	ActionNotification = "com.symbol.datawedge.api.NOTIFICATION_ACTION"

	CategoryDefault = "android.intent.category.DEFAULT"
)

// Command extras sent with ActionAPI.
const (
	ExtraCreateProfile          = "com.symbol.datawedge.api.CREATE_PROFILE"
	ExtraSetConfig              = "com.symbol.datawedge.api.SET_CONFIG"
	ExtraGetVersionInfo         = "com.symbol.datawedge.api.GET_VERSION_INFO"
	ExtraRegisterNotification   = "com.symbol.datawedge.api.REGISTER_FOR_NOTIFICATION"
	ExtraUnregisterNotification = "com.symbol.datawedge.api.UNREGISTER_FOR_NOTIFICATION"
	ExtraApplicationName        = "com.symbol.datawedge.api.APPLICATION_NAME"
	ExtraNotificationType       = "com.symbol.datawedge.api.NOTIFICATION_TYPE"
	ExtraSendResult             = "SEND_RESULT"
	ExtraCommandIdentifier      = "COMMAND_IDENTIFIER"

	NotificationTypeScannerStatus = "SCANNER_STATUS"
)

// Reply extras.
const (
	ExtraNotification       = "com.symbol.datawedge.api.NOTIFICATION"
	ExtraResultVersionInfo  = "com.symbol.datawedge.api.RESULT_GET_VERSION_INFO"
	ExtraResult             = "RESULT"
	ExtraCommand            = "COMMAND"
	ExtraResultInfo         = "RESULT_INFO"
	ExtraStatus             = "STATUS"
	ExtraProfileName        = "PROFILE_NAME"
	VersionInfoDataWedgeKey = "DATAWEDGE"

	ResultSuccess = "SUCCESS"
	ResultFailure = "FAILURE"
)

// Scan output extras.
const (
	ExtraDataString = "com.symbol.datawedge.data_string"
	ExtraLabelType  = "com.symbol.datawedge.label_type"
	ExtraSource     = "com.symbol.datawedge.source"
)

// Scanner status values carried by SCANNER_STATUS notifications.
const (
	StatusWaiting      = "WAITING"
	StatusScanning     = "SCANNING"
	StatusIdle         = "IDLE"
	StatusDisabled     = "DISABLED"
	StatusConnected    = "CONNECTED"
	StatusDisconnected = "DISCONNECTED"
)

const (
	// IntentDeliveryBroadcast selects sendBroadcast output on the intent plugin.
	IntentDeliveryBroadcast = "2"

	// MinimumVersion is the first release accepting SET_CONFIG with APP_LIST.
	MinimumVersion = "6.4"
)
