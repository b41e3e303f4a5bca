package enums

// PaymentStatus tracks the payment side of an order. It moves independently
// of OrderStatus: a paid order can still be cancelled by staff.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentStatuses = []PaymentStatus{
	PaymentStatusUnpaid,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return known(paymentStatuses, p) }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse(paymentStatuses, value, "payment status")
}
