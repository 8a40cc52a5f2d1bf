// Package errors provides structured error types for better observability
// and programmatic error handling across the provisioning run.
//
// Example usage:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodePreflightFailure,
//	    "no NVIDIA GPU found on this host",
//	    cause,
//	    map[string]interface{}{
//	        "command": "lspci",
//	    },
//	)
package errors
