package orders

const (
	TopicOrderPlaced      = "order.placed"
	TopicOrderUpdated     = "order.updated"
	TopicPaymentConfirmed = "order.payment.confirmed"
	TopicOrderCancelled   = "order.cancelled"
	// Published by the provider webhook relay, consumed by cmd/payment-worker.
	TopicPaymentSettled = "payment.settled"
)

// Partition key = order_id so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
