package constants

// JobStatus is the canonical status for rows in extract_job.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusSucceeded JobStatus = "SUCCEEDED" // fields extracted and mapped
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure, see FailureKind
)

// FailureKind classifies why a document produced no invoice.
type FailureKind string

const (
	ParseFailure      FailureKind = "PARSE_FAILURE"      // bytes could not be turned into text
	ExtractionFailure FailureKind = "EXTRACTION_FAILURE" // remote field extraction did not succeed
	MalformedResult   FailureKind = "MALFORMED_RESULT"   // extraction returned an unusable structure
)

// ParseCause narrows a ParseFailure.
type ParseCause string

const (
	ParseCauseNotPDF    ParseCause = "not_pdf"
	ParseCauseEncrypted ParseCause = "encrypted"
	ParseCauseCorrupt   ParseCause = "corrupt"
	ParseCauseEmpty     ParseCause = "empty"
)

// ExtractionCause narrows an ExtractionFailure.
type ExtractionCause string

const (
	CauseNetwork         ExtractionCause = "network"
	CauseTimeout         ExtractionCause = "timeout"
	CauseAuth            ExtractionCause = "auth"
	CauseRateLimit       ExtractionCause = "rate_limit"
	CauseMalformedOutput ExtractionCause = "malformed_output"
	CauseUpstream        ExtractionCause = "upstream" // any other non-2xx answer
)

// Transient reports whether a retry may succeed.
func (c ExtractionCause) Transient() bool {
	switch c {
	case CauseNetwork, CauseTimeout, CauseRateLimit:
		return true
	default:
		return false
	}
}
