package transport

import "context"

// Server is a transport server with a blocking Start and a graceful Stop.
type Server interface {
	Start(context.Context) error
	Stop(context.Context) error
}
