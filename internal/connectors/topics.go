package connectors

const (
	TopicConnStatus    = "conn.status"
	TopicIntentIn      = "intent.in"
	TopicIntentOut     = "intent.out"
	TopicRawFrameIn    = "raw.frame.in"
	TopicRawFrameOut   = "raw.frame.out"
	TopicBarcode       = "scanner.barcode"
	TopicScan          = "scanner.scan"
	TopicScannerStatus = "scanner.status"
	TopicCommandResult = "scanner.command_result"
	TopicVersion       = "scanner.version"
	TopicSession       = "scanner.session"
)
