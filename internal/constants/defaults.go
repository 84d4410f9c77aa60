package constants

// Default scheduler configuration values
const (
	DefaultReminderIntervalSec  = 120
	DefaultReminderLeadTimeMin  = 60
	DefaultSendTimeoutSec       = 30
	DefaultSchedulerTickTimeout = 90
)

// Default session configuration values
const (
	DefaultCountryCode      = "55"
	SessionIDPrefix         = "session_"
	MinLocalPhoneDigits     = 10
	MaxCompanyNameLength    = 50
	DefaultDeviceName       = "Sem nome"
	DefaultConnectTimeout   = 120
	DefaultDeviceRefreshSec = 10
)

// Default server values
const (
	DefaultServerPort           = 3000
	DefaultServerReadTimeoutSec = 15
	DefaultServerWriteTimeout   = 15
	DefaultServerIdleTimeoutSec = 60
	DefaultGracefulShutdownSec  = 30
	ServerErrorChannelSize      = 1
)

// Default retry values
const (
	DefaultDatabaseRetryAttempts = 3
	DefaultBackoffInitialMs      = 500
	DefaultMaxBackoffMs          = 60000
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
)

// Default environment values
const (
	DefaultTimeZone     = "America/Sao_Paulo"
	DefaultWPPTimeoutMs = 30000
	MinAPISecretLength  = 32
)
