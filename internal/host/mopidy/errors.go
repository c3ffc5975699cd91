package mopidy

import "fmt"

// RPCError is a JSON-RPC error object returned by the host.
type RPCError struct {
	Method  string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("host rpc %s failed: %d %s", e.Method, e.Code, e.Message)
}

// UnreachableError is returned when the host RPC endpoint cannot be reached.
type UnreachableError struct {
	Method string
	Err    error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("host unreachable for %s: %v", e.Method, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}
