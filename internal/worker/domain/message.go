package domain

// Acknowledger settles a delivery. amqp.Delivery satisfies it.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Message is one delivery handed from the dispatcher to the worker pool
type Message struct {
	MessageID   string
	Type        string
	Body        []byte
	DeliveryTag uint64
	Redelivered bool

	Delivery Acknowledger
}
