package apperrors

import "errors"

// Ingestion errors are returned while turning statement documents into transactions.
var (
	// ErrUnsupportedFormat indicates that the document is neither a PDF nor a
	// recognised spreadsheet. The user must resupply the document.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrParseFailure indicates that the document was recognised but yielded no
	// schemes, or could not be decrypted or read. Existing data is untouched.
	ErrParseFailure = errors.New("failed to parse statement")
)

// Market data errors are recoverable: callers degrade the affected item and carry on.
var (
	// ErrNoHistoryAvailable indicates that no NAV could be resolved for a date,
	// either because the series is empty or the date predates all history.
	ErrNoHistoryAvailable = errors.New("no price history available")

	// ErrQuoteUnavailable indicates that no price could be extracted for a ticker.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrUpstreamTimeout indicates that an external call exceeded its deadline.
	// The item is retried on the next sync cycle.
	ErrUpstreamTimeout = errors.New("upstream request timed out")
)

// Domain entity errors represent missing or invalid entities in the system.
var (
	// ErrLotNotFound indicates that a lot with the given ID does not exist.
	ErrLotNotFound = errors.New("lot not found")

	// ErrSchemeNotFound indicates that a scheme with the given ID does not exist.
	ErrSchemeNotFound = errors.New("scheme not found")
)

// Business logic errors represent validation failures or constraint violations.
var (
	// ErrUnitsPinned indicates that valuation was requested for a lot whose unit
	// count was pinned manually. Pinned units override computed units.
	ErrUnitsPinned = errors.New("lot units are pinned manually")

	// ErrUnknownLotKind indicates that a lot kind is neither ONE_OFF nor RECURRING.
	ErrUnknownLotKind = errors.New("unknown lot kind")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrDuplicateEntry indicates that an entity with the same unique constraint already exists.
	ErrDuplicateEntry = errors.New("duplicate entry")

	ErrInvalidFundID  = errors.New("fund ID is required")
	ErrMissingTickers = errors.New("at least one ticker is required")
)

// Operation failure errors represent system-level failures when retrieving or processing data.
var (
	ErrFailedToRetrieveLots    = errors.New("failed to retrieve lots")
	ErrFailedToRetrieveLot     = errors.New("failed to retrieve lot")
	ErrFailedToRetrieveSchemes = errors.New("failed to retrieve schemes")
	ErrFailedToImport          = errors.New("failed to import transactions")
	ErrFailedToSync            = errors.New("failed to sync lots")
	ErrFailedToGetSnapshot     = errors.New("failed to get portfolio snapshot")
)
