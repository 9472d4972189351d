package alerts

var (
	NewKafkaPublisherForTest = newKafkaPublisher
	BuildMessageForTest      = buildMessage
)
