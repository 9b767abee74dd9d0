package cnst

const (
	// AppName is the name of the application
	AppName = "skirmish-broker"
	// CommandName is the name of the broker binary
	CommandName = "skirmish-broker"
)
