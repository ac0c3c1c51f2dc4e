package runner

import "errors"

// ErrNoConnection — Runner запущен без соединения с RabbitMQ.
var ErrNoConnection = errors.New("runner requires a RabbitMQ connection")
