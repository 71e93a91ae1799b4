package kafka

import "time"

// ProducerConfig holds Kafka producer configuration.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration
	Async        bool
	HashByKey    bool
}

// ProducerOption configures the producer.
type ProducerOption func(*ProducerConfig)

// WithBrokers sets the broker list.
func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithRequiredAcks sets the acks level (-1 all, 0 none, 1 leader).
func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) { c.RequiredAcks = acks }
}

// WithCompression sets the compression codec.
func WithCompression(comp string) ProducerOption {
	return func(c *ProducerConfig) {
		if comp != "" {
			c.Compression = comp
		}
	}
}

// WithMaxAttempts sets the delivery attempt limit.
func WithMaxAttempts(n int) ProducerOption {
	return func(c *ProducerConfig) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithTimeouts sets write/read timeouts.
func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if write > 0 {
			c.WriteTimeout = write
		}
		if read > 0 {
			c.ReadTimeout = read
		}
	}
}

// WithBatchSize sets the message count per batch.
func WithBatchSize(n int) ProducerOption {
	return func(c *ProducerConfig) {
		if n > 0 {
			c.BatchSize = n
		}
	}
}

// WithBatchBytes sets the byte budget per batch.
func WithBatchBytes(n int) ProducerOption {
	return func(c *ProducerConfig) {
		if n > 0 {
			c.BatchBytes = n
		}
	}
}

// WithBatchTimeout sets the linger duration.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if d > 0 {
			c.BatchTimeout = d
		}
	}
}

// WithHashByKey routes messages to partitions by key hash.
func WithHashByKey(enabled bool) ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = enabled }
}
