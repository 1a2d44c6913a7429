package domain

import "time"

// Phase names, used as retry-counter keys and in timeout notes.
const (
	PhaseEligibility       = "eligibility"
	PhasePayment           = "payment"
	PhaseTransfer          = "transfer"
	PhaseBuyerVerification = "buyer_verification"
	PhaseFinalVerification = "final_verification"
)

// PhaseData holds the per-phase payloads accumulated as a transaction walks
// the state machine. A phase's payload is only ever merged into, never
// replaced, so earlier attestations stay available for dispute resolution.
type PhaseData struct {
	Eligibility       *EligibilityData       `json:"eligibility,omitempty"`
	Payment           *PaymentData           `json:"payment,omitempty"`
	Transfer          *TransferData          `json:"transfer,omitempty"`
	BuyerVerification *BuyerVerificationData `json:"buyerVerification,omitempty"`
	FinalVerification *FinalVerificationData `json:"finalVerification,omitempty"`
}

// EligibilityData records the seller's attestation that the account can be
// handed over at all.
type EligibilityData struct {
	HasCapability *bool      `json:"hasCapability,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmedAt,omitempty"`
	ConfirmedBy   string     `json:"confirmedBy,omitempty"`
}

// PaymentData records the seller's bank-transfer attestation and the admin
// verdict on it.
type PaymentData struct {
	CardDetails  string     `json:"cardDetails,omitempty"`
	SubmittedAt  *time.Time `json:"submittedAt,omitempty"`
	SubmittedBy  string     `json:"submittedBy,omitempty"`
	Approved     *bool      `json:"approved,omitempty"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty"`
	ReviewedBy   string     `json:"reviewedBy,omitempty"`
	RejectReason string     `json:"rejectReason,omitempty"`
}

// TransferStatus values for TransferData.Status.
const (
	TransferStatusPending  = "pending"
	TransferStatusVerified = "verified"
)

// TransferData tracks the account hand-over: the buyer's new email, the
// verification-code round trip, and how many code entries failed. Only the
// SHA-256 digest of the issued code is stored.
type TransferData struct {
	NewEmail         string     `json:"newEmail,omitempty"`
	EmailSubmittedAt *time.Time `json:"emailSubmittedAt,omitempty"`
	EmailSubmittedBy string     `json:"emailSubmittedBy,omitempty"`
	CodeRequestedAt  *time.Time `json:"codeRequestedAt,omitempty"`
	CodeDigest       string     `json:"codeDigest,omitempty"`
	FailedAttempts   int        `json:"failedAttempts,omitempty"`
	Status           string     `json:"status,omitempty"`
	VerifiedAt       *time.Time `json:"verifiedAt,omitempty"`
}

// BuyerVerificationData records the buyer's verdict on the received account.
type BuyerVerificationData struct {
	Satisfied       *bool      `json:"satisfied,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmedAt,omitempty"`
	Issue           string     `json:"issue,omitempty"`
	IssueReportedAt *time.Time `json:"issueReportedAt,omitempty"`
}

// Review statuses for FinalVerificationData.Status.
const (
	ReviewStatusPending  = "pending_admin_review"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// FinalVerificationData tracks the logout-video evidence and the admin
// verdict that closes the escrow.
type FinalVerificationData struct {
	VideoUploaded   bool       `json:"videoUploaded,omitempty"`
	VideoUploadedAt *time.Time `json:"videoUploadedAt,omitempty"`
	VideoUploadedBy string     `json:"videoUploadedBy,omitempty"`
	Status          string     `json:"status,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
	ReviewedBy      string     `json:"reviewedBy,omitempty"`
	RejectReason    string     `json:"rejectReason,omitempty"`
}

// The Update* mutators below are the only sanctioned way to touch phase
// payloads. Each allocates the payload on first use, hands it to fn for an
// in-place merge, and bumps UpdatedAt.

func (t *Transaction) UpdateEligibility(now time.Time, fn func(*EligibilityData)) {
	if t.Data.Eligibility == nil {
		t.Data.Eligibility = &EligibilityData{}
	}
	fn(t.Data.Eligibility)
	t.UpdatedAt = now
}

func (t *Transaction) UpdatePayment(now time.Time, fn func(*PaymentData)) {
	if t.Data.Payment == nil {
		t.Data.Payment = &PaymentData{}
	}
	fn(t.Data.Payment)
	t.UpdatedAt = now
}

func (t *Transaction) UpdateTransfer(now time.Time, fn func(*TransferData)) {
	if t.Data.Transfer == nil {
		t.Data.Transfer = &TransferData{}
	}
	fn(t.Data.Transfer)
	t.UpdatedAt = now
}

func (t *Transaction) UpdateBuyerVerification(now time.Time, fn func(*BuyerVerificationData)) {
	if t.Data.BuyerVerification == nil {
		t.Data.BuyerVerification = &BuyerVerificationData{}
	}
	fn(t.Data.BuyerVerification)
	t.UpdatedAt = now
}

func (t *Transaction) UpdateFinalVerification(now time.Time, fn func(*FinalVerificationData)) {
	if t.Data.FinalVerification == nil {
		t.Data.FinalVerification = &FinalVerificationData{}
	}
	fn(t.Data.FinalVerification)
	t.UpdatedAt = now
}
