package payment

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidStatus = errors.New("payment: invalid status")
	ErrInvalidMethod = errors.New("payment: invalid method")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

type Method string

const (
	MethodCreditCard       Method = "credit_card"
	MethodPayPal           Method = "paypal"
	MethodBankTransfer     Method = "bank_transfer"
	MethodElectronicWallet Method = "electronic_wallet"
	MethodApplePay         Method = "apple_pay"
	MethodCOD              Method = "cod"
)

var (
	statuses = map[Status]struct{}{
		StatusPending: {}, StatusCompleted: {}, StatusFailed: {}, StatusRefunded: {}, StatusCancelled: {},
	}
	methods = map[Method]struct{}{
		MethodCreditCard: {}, MethodPayPal: {}, MethodBankTransfer: {},
		MethodElectronicWallet: {}, MethodApplePay: {}, MethodCOD: {},
	}
)

// ParseStatus validates raw against the payment status enumeration.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := statuses[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// ParseMethod validates raw against the payment method enumeration.
func ParseMethod(raw string) (Method, error) {
	m := Method(raw)
	if _, ok := methods[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, raw)
	}
	return m, nil
}

// Payment is the local ledger row attached to an order at creation.
type Payment struct {
	ID             string    `json:"payment_id"`
	OrderID        string    `json:"order_id"`
	Method         Method    `json:"payment_method"`
	Amount         int64     `json:"amount"`
	Status         Status    `json:"status"`
	TransactionRef string    `json:"transaction_id,omitempty"`
	CreatedAt      time.Time `json:"payment_date"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func New(id, orderID string, method Method, amount int64) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:        id,
		OrderID:   orderID,
		Method:    method,
		Amount:    amount,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (p *Payment) SetStatus(s Status) {
	p.Status = s
	p.UpdatedAt = time.Now().UTC()
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
