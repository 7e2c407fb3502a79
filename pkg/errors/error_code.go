package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidSide          ErrorCode = 103
	ErrCodeInvalidQuantity      ErrorCode = 104
	ErrCodeMissingLimitPrice    ErrorCode = 105
	ErrCodeInvalidOrderKind     ErrorCode = 106
	ErrCodeMissingParameter     ErrorCode = 107

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeNoData                ErrorCode = 203
	ErrCodeHistoricalDataFailed  ErrorCode = 204

	// Strategy errors (400-499)
	ErrCodeStrategyNotFound     ErrorCode = 400
	ErrCodeStrategyInitFailed   ErrorCode = 401
	ErrCodeStrategyRuntimeError ErrorCode = 402

	// Trading errors (500-599)
	ErrCodeOrderNotFound      ErrorCode = 500
	ErrCodeInsufficientFunds  ErrorCode = 501
	ErrCodeInsufficientShares ErrorCode = 502
	ErrCodeOrderNotCancelable ErrorCode = 503
	ErrCodeOrderTimeout       ErrorCode = 504
	ErrCodeBrokerNotFound     ErrorCode = 505

	// Run errors (600-699)
	ErrCodeRunNotRestartable ErrorCode = 600
	ErrCodeRunCancelled      ErrorCode = 601
	ErrCodeRunNotFound       ErrorCode = 602

	// Persistence errors (700-799)
	ErrCodeSaveFailed           ErrorCode = 700
	ErrCodeLoadFailed           ErrorCode = 701
	ErrCodeIncompatibleVersion  ErrorCode = 702
	ErrCodeExportFailed         ErrorCode = 703
	ErrCodeStoreUnavailable     ErrorCode = 704
	ErrCodeDeleteFailed         ErrorCode = 705
	ErrCodeStoreSchemaMigration ErrorCode = 706
)
