package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusPaid: true, StatusCancelled: true},
	StatusPaid:       {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

type PaymentMethod string

const (
	MethodPix        PaymentMethod = "pix"
	MethodCreditCard PaymentMethod = "credit_card"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodPix || m == MethodCreditCard
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)
