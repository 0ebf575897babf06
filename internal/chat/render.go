package chat

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/loopmarked/dashboard/internal/store"
)

// CurrencyLabel is appended to offer amounts.
const CurrencyLabel = "Lumo"

// Alignment places a bubble on the local user's side or the counterpart's.
type Alignment string

const (
	AlignSelf  Alignment = "self"
	AlignOther Alignment = "other"
)

// Variant selects the bubble layout.
type Variant string

const (
	VariantText  Variant = "text"
	VariantOffer Variant = "offer"
)

// Status tracks an entry through the optimistic send.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// DisplayMessage is a message ready to be drawn.
type DisplayMessage struct {
	ID          int64 // zero while pending
	ClientRef   string
	Alignment   Alignment
	Variant     Variant
	PrimaryText string
	Amount      *float64 // set for offers
	Status      Status
	CreatedAt   time.Time
	Err         error // FormatError when an offer fell back to text
}

// ParseOffer reads an offer amount. It must be a finite, non-negative number.
func ParseOffer(content string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(content), 64)
	if err != nil {
		return 0, formatError("offer amount is not a number", err)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0, formatError("offer amount out of range", nil)
	}
	return amount, nil
}

// FormatAmount renders an amount with the currency label, e.g. "12.5 Lumo".
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64) + " " + CurrencyLabel
}

// Render maps a message to its display form. Offers whose content does not
// parse are shown as plain text with Err set instead of failing the list.
func Render(msg store.Message, localUserID string) DisplayMessage {
	out := DisplayMessage{
		ID:          msg.ID,
		ClientRef:   msg.ClientRef,
		Alignment:   AlignOther,
		Variant:     VariantText,
		PrimaryText: msg.Content,
		Status:      StatusSent,
		CreatedAt:   msg.CreatedAt,
	}
	if msg.SenderID == localUserID {
		out.Alignment = AlignSelf
	}

	if msg.Kind != store.MessageKindOffer {
		return out
	}

	amount, err := ParseOffer(msg.Content)
	if err != nil {
		out.Err = err
		return out
	}
	out.Variant = VariantOffer
	out.Amount = &amount
	out.PrimaryText = FormatAmount(amount)
	return out
}
