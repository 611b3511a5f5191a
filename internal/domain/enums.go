package domain

// SubmissionStatus is the outcome of a form submission
type SubmissionStatus string

const (
	SubmissionStatusReceived  SubmissionStatus = "received"
	SubmissionStatusApplied   SubmissionStatus = "applied"
	SubmissionStatusDuplicate SubmissionStatus = "duplicate"
	SubmissionStatusNotFound  SubmissionStatus = "not_found"
	SubmissionStatusFailed    SubmissionStatus = "failed"
	// SubmissionStatusInvalid marks a submission the platform rejected as malformed
	SubmissionStatusInvalid SubmissionStatus = "invalid"
)

// IsValid checks if the submission status is valid
func (s SubmissionStatus) IsValid() bool {
	switch s {
	case SubmissionStatusReceived,
		SubmissionStatusApplied,
		SubmissionStatusDuplicate,
		SubmissionStatusNotFound,
		SubmissionStatusFailed,
		SubmissionStatusInvalid:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the submission has reached a final outcome
func (s SubmissionStatus) IsTerminal() bool {
	return s != SubmissionStatusReceived && s.IsValid()
}

// StorageMode selects how a submission is written onto the order
type StorageMode string

const (
	// StorageModeJSON aggregates submissions in details_json + submitted_variant_ids
	StorageModeJSON StorageMode = "json"
	// StorageModeText writes variant_id + formula_details as single line text
	StorageModeText StorageMode = "text"
)

func (m StorageMode) IsValid() bool {
	return m == StorageModeJSON || m == StorageModeText
}

// DetailsKey selects the key used for an entry in details_json
type DetailsKey string

const (
	DetailsKeyVariantLabel DetailsKey = "label"
	DetailsKeyVariantID    DetailsKey = "variant_id"
)

func (k DetailsKey) IsValid() bool {
	return k == DetailsKeyVariantLabel || k == DetailsKeyVariantID
}

// MergeStrategy controls how a new submission combines with an existing details_json entry
type MergeStrategy string

const (
	MergeStrategyMerge   MergeStrategy = "merge"
	MergeStrategyReplace MergeStrategy = "replace"
)

func (m MergeStrategy) IsValid() bool {
	return m == MergeStrategyMerge || m == MergeStrategyReplace
}

// Metafield keys and types written by this service
const (
	MetafieldKeyDetailsJSON         = "details_json"
	MetafieldKeySubmittedVariantIDs = "submitted_variant_ids"
	MetafieldKeyVariantID           = "variant_id"
	MetafieldKeyFormulaDetails      = "formula_details"

	MetafieldTypeJSON                = "json"
	MetafieldTypeSingleLineTextField = "single_line_text_field"
)
