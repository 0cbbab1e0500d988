package rabbitmq

import "errors"

var (
	errMissingJobID = errors.New("dispatch message has no jobId")
	errNacked       = errors.New("broker rejected message")
)
