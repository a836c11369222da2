package status

// Sentinel errors for conditions callers commonly need to compare against
// with errors.Is, grouped by the subsystem that raises them.

// Mode manager errors.
var (
	ErrInvalidTransition = &Error{Code: InvalidParam, Subsystem: "mode", Detail: "transition not permitted from current mode"}
	ErrModeTimeout       = &Error{Code: Timeout, Subsystem: "mode", Detail: "mode exceeded its maximum dwell time"}
)

// Scheduler errors.
var (
	ErrSchedulerFull   = &Error{Code: NoMemory, Subsystem: "scheduler", Detail: "job table is full"}
	ErrJobNotFound     = &Error{Code: NotFound, Subsystem: "scheduler", Detail: "no job registered with that id"}
	ErrInvalidPeriod   = &Error{Code: InvalidParam, Subsystem: "scheduler", Detail: "period must be positive"}
)

// FDIR errors.
var (
	ErrUnknownFault  = &Error{Code: NotFound, Subsystem: "fdir", Detail: "no rule registered for fault kind"}
	ErrFaultTableFull = &Error{Code: NoMemory, Subsystem: "fdir", Detail: "fault record table is full"}
)

// CCSDS codec errors.
var (
	ErrPacketTooShort  = &Error{Code: InvalidParam, Subsystem: "ccsds", Detail: "buffer shorter than a primary header"}
	ErrPacketTooLong   = &Error{Code: Overflow, Subsystem: "ccsds", Detail: "packet exceeds maximum length"}
	ErrCRCMismatch     = &Error{Code: CrcMismatch, Subsystem: "ccsds", Detail: "CRC-16 checksum failed"}
	ErrNotATelecommand = &Error{Code: InvalidParam, Subsystem: "ccsds", Detail: "packet type bit does not indicate a telecommand"}
)

// Telecommand dispatcher errors.
var (
	ErrHandlerTableFull  = &Error{Code: NoMemory, Subsystem: "telecommand", Detail: "handler table is full"}
	ErrHandlerNotFound   = &Error{Code: NotFound, Subsystem: "telecommand", Detail: "no handler registered for service/subtype"}
	ErrAuthInsufficient  = &Error{Code: PermissionDenied, Subsystem: "telecommand", Detail: "command requires a higher authorization level"}
	ErrNotSafeModeListed = &Error{Code: PermissionDenied, Subsystem: "telecommand", Detail: "command is not on the safe-mode allow list"}
	ErrSafeListFull      = &Error{Code: NoMemory, Subsystem: "telecommand", Detail: "safe-mode allow list is full"}
)

// Telemetry pipeline errors.
var (
	ErrDefinitionTableFull = &Error{Code: NoMemory, Subsystem: "telemetry", Detail: "definition table is full"}
	ErrDefinitionNotFound  = &Error{Code: NotFound, Subsystem: "telemetry", Detail: "no definition registered for that packet id"}
	ErrQueueFull           = &Error{Code: Overflow, Subsystem: "telemetry", Detail: "queue is full and no lower-priority victim was found"}
	ErrQueueEmpty          = &Error{Code: Underflow, Subsystem: "telemetry", Detail: "queue has no packets to dequeue"}
)

// Boot record errors.
var (
	ErrBadMagic    = &Error{Code: CrcMismatch, Subsystem: "bootrecord", Detail: "persistent record magic sentinel mismatch"}
	ErrBadChecksum = &Error{Code: CrcMismatch, Subsystem: "bootrecord", Detail: "persistent record checksum mismatch"}
)

// Time service errors.
var (
	ErrClockNotSynced = &Error{Code: NotReady, Subsystem: "timeservice", Detail: "UTC clock has not been synchronized"}
)

// NVM errors.
var (
	ErrNVMKeyNotFound = &Error{Code: NotFound, Subsystem: "nvm", Detail: "key not present in persistent store"}
)
