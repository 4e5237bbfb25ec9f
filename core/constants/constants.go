package constants

import "time"

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultTimeout        = 10 * time.Second

	ContextTokenData = "token_data"

	ScopeTokenAccess        = "access"
	ScopeTokenCancelConfirm = "cancel_confirm"

	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 10
	DatabaseConnMaxLifetime = 30 // minutes
	DatabaseSSLMode         = "disable"

	RedisKeySlotLock = "tz_slot_lock:"

	DefaultLockWait     = 3 * time.Second
	DefaultLockTTL      = 30 * time.Second
	LockPollInterval    = 50 * time.Millisecond
	DefaultCancelWindow = 10 * time.Minute

	DefaultPageSize = 20
	MaxPageSize     = 200
)
