package core

import (
	"errors"
	"strings"
)

const (
	CategoryTVProduction ProjectCategory = "tv_production"
	CategorySpot         ProjectCategory = "spot"
	CategoryWedding      ProjectCategory = "wedding"
	CategoryPrivateEvent ProjectCategory = "private_event"
	CategoryWebDev       ProjectCategory = "web_development"
	CategoryUnknown      ProjectCategory = "unknown"
)

const (
	QuoteFirstContact    QuoteStatus = "first_contact"
	QuoteSent            QuoteStatus = "sent"
	QuoteNegotiating     QuoteStatus = "negotiating"
	QuoteAccepted        QuoteStatus = "accepted"
	QuoteDepositReceived QuoteStatus = "deposit_received"
	QuoteInProgress      QuoteStatus = "in_progress"
	QuoteCompleted       QuoteStatus = "completed"
	QuoteSettled         QuoteStatus = "settled"
	QuoteRejected        QuoteStatus = "rejected"
	QuoteLost            QuoteStatus = "lost"
	QuoteUnknown         QuoteStatus = "unknown"
)

const (
	PaymentReceived PaymentStatus = "received"
	PaymentPending  PaymentStatus = "pending"
	PaymentOverdue  PaymentStatus = "overdue"
)

const (
	TypePayment PaymentType = "payment"
	TypeRefund  PaymentType = "refund"
)

const (
	ExpenseStandard   ExpenseKind = "standard"
	ExpenseKilometric ExpenseKind = "kilometric"
	ExpenseCredit     ExpenseKind = "credit"
)

type (
	ProjectCategory string
	QuoteStatus     string
	PaymentStatus   string
	PaymentType     string
	ExpenseKind     string

	Client struct {
		ID   string
		Name string
	}

	Project struct {
		ID       string
		ClientID string
		Name     string
		Category ProjectCategory
	}

	// Service is a billable unit of work belonging to a project.
	// Revenue is recognized on a competence basis: the service date,
	// not the payment date, decides the year it belongs to.
	Service struct {
		ID          string
		ProjectID   string
		Date        Date
		FeeShooting Amount
		FeeEditing  Amount
		FeeOther    Amount
		Discount    Amount
		TravelKm    Amount
		KmRate      Amount
	}

	Payment struct {
		ID        string
		ClientID  string
		ProjectID string
		QuoteID   string
		Date      Date
		DueDate   Date
		Amount    Amount
		Status    PaymentStatus
		Type      PaymentType
	}

	Quote struct {
		ID          string
		ClientID    string
		ProjectID   string
		Title       string
		Amount      Amount
		Status      QuoteStatus
		SentAt      Date
		RespondedAt Date
	}

	Expense struct {
		ID        string
		ProjectID string
		ClientID  string
		Date      Date
		Kind      ExpenseKind
		Amount    Amount
		TravelKm  Amount
		KmRate    Amount
		MarkupPct Amount
	}

	// TaxProfile links an ATECO activity code and its profitability
	// coefficient to the project categories it covers.
	TaxProfile struct {
		ATECOCode      string
		CoefficientPct float64
		Categories     []ProjectCategory
	}

	// FiscalConfig is the caller-supplied configuration for the forfait
	// regime simulation. It is part of the engine input, never ambient state.
	FiscalConfig struct {
		Profiles            []TaxProfile
		ContributionRatePct float64
		RevenueCeiling      float64
		BusinessStartYear   int
		TaxRateOverridePct  *float64
	}
)

var (
	ErrInvalidContributionRate = errors.New("contribution rate must be between 0 and 100")
	ErrInvalidStartYear        = errors.New("business start year out of range")
	ErrInvalidCoefficient      = errors.New("profitability coefficient must be between 0 and 100")
	ErrEmptyATECOCode          = errors.New("empty ATECO code")
)

var projectCategories = map[ProjectCategory]bool{
	CategoryTVProduction: true,
	CategorySpot:         true,
	CategoryWedding:      true,
	CategoryPrivateEvent: true,
	CategoryWebDev:       true,
}

var quoteStatuses = map[QuoteStatus]bool{
	QuoteFirstContact:    true,
	QuoteSent:            true,
	QuoteNegotiating:     true,
	QuoteAccepted:        true,
	QuoteDepositReceived: true,
	QuoteInProgress:      true,
	QuoteCompleted:       true,
	QuoteSettled:         true,
	QuoteRejected:        true,
	QuoteLost:            true,
}

// ParseProjectCategory maps a raw category string onto the closed enum.
// Legacy or unrecognized values fall back to CategoryUnknown instead of
// passing through silently.
func ParseProjectCategory(s string) ProjectCategory {
	c := ProjectCategory(strings.TrimSpace(strings.ToLower(s)))
	if projectCategories[c] {
		return c
	}
	return CategoryUnknown
}

// ParseQuoteStatus maps a raw status string onto the closed enum, with
// QuoteUnknown as the fallback for legacy values.
func ParseQuoteStatus(s string) QuoteStatus {
	st := QuoteStatus(strings.TrimSpace(strings.ToLower(s)))
	if quoteStatuses[st] {
		return st
	}
	return QuoteUnknown
}

// ParsePaymentStatus defaults to pending for unrecognized values.
func ParsePaymentStatus(s string) PaymentStatus {
	switch PaymentStatus(strings.TrimSpace(strings.ToLower(s))) {
	case PaymentReceived:
		return PaymentReceived
	case PaymentOverdue:
		return PaymentOverdue
	default:
		return PaymentPending
	}
}

// ParsePaymentType defaults to payment for unrecognized values.
func ParsePaymentType(s string) PaymentType {
	if PaymentType(strings.TrimSpace(strings.ToLower(s))) == TypeRefund {
		return TypeRefund
	}
	return TypePayment
}

// ParseExpenseKind defaults to standard for unrecognized values.
func ParseExpenseKind(s string) ExpenseKind {
	switch ExpenseKind(strings.TrimSpace(strings.ToLower(s))) {
	case ExpenseKilometric:
		return ExpenseKilometric
	case ExpenseCredit:
		return ExpenseCredit
	default:
		return ExpenseStandard
	}
}

// NetRevenue returns the revenue of the service net of discount:
// fee_shooting + fee_editing + fee_other - discount.
func (s Service) NetRevenue() float64 {
	return float64(s.FeeShooting) + float64(s.FeeEditing) + float64(s.FeeOther) - float64(s.Discount)
}

// TravelCost returns the kilometric travel cost of the service.
func (s Service) TravelCost() float64 {
	return float64(s.TravelKm) * float64(s.KmRate)
}

// Signed returns the payment amount with refunds negated.
func (p Payment) Signed() float64 {
	if p.Type == TypeRefund {
		return -float64(p.Amount)
	}
	return float64(p.Amount)
}

// Cost returns the effective cost of the expense. Kilometric expenses
// compute as distance times rate, credit-received expenses subtract,
// standard expenses apply the optional markup.
func (e Expense) Cost() float64 {
	switch e.Kind {
	case ExpenseKilometric:
		return float64(e.TravelKm) * float64(e.KmRate)
	case ExpenseCredit:
		return -float64(e.Amount)
	default:
		return float64(e.Amount) * (1 + float64(e.MarkupPct)/100)
	}
}

// Closed reports whether the quote status no longer counts toward the
// open-quote amount. The set includes completed: a completed quote is
// closed for pipeline purposes even before it is settled.
func (s QuoteStatus) Closed() bool {
	switch s {
	case QuoteCompleted, QuoteSettled, QuoteRejected, QuoteLost:
		return true
	}
	return false
}

// AcceptedOrFurther reports whether the quote reached at least the
// accepted stage. Completed and settled count here too; the overlap with
// Closed is intentional and must not be unified.
func (s QuoteStatus) AcceptedOrFurther() bool {
	switch s {
	case QuoteAccepted, QuoteDepositReceived, QuoteInProgress, QuoteCompleted, QuoteSettled:
		return true
	}
	return false
}

func (c FiscalConfig) Validate() error {
	if c.ContributionRatePct < 0 || c.ContributionRatePct > 100 {
		return ErrInvalidContributionRate
	}
	if c.BusinessStartYear < 1900 || c.BusinessStartYear > 2200 {
		return ErrInvalidStartYear
	}
	for _, p := range c.Profiles {
		if strings.TrimSpace(p.ATECOCode) == "" {
			return ErrEmptyATECOCode
		}
		if p.CoefficientPct < 0 || p.CoefficientPct > 100 {
			return ErrInvalidCoefficient
		}
	}
	return nil
}
