package apierror

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// StatusFor resolves the HTTP status for an error kind.
//
// Classification order:
//  1. any kind whose name contains "Invalid" is forced to 401, regardless
//     of which specific invalid-* variant it is;
//  2. the fixed table of named kinds;
//  3. a kind that is itself a literal status integer in [200,599] passes
//     through unchanged;
//  4. otherwise a diagnostic is logged and the literal value is still
//     returned rather than coerced to a safe default. Non-numeric unknown
//     kinds have no literal value to return and fall back to 500.
func StatusFor(errorType ErrorType, logger *zap.Logger) int {
	if strings.Contains(string(errorType), "Invalid") {
		return 401
	}

	if status, ok := statusTable[errorType]; ok {
		return status
	}

	if n, err := strconv.Atoi(string(errorType)); err == nil {
		if n >= 200 && n <= 599 {
			return n
		}
		if logger != nil {
			logger.Warn("error type carries an out-of-range status, passing it through",
				zap.String("error_type", string(errorType)),
				zap.Int("status", n),
			)
		}
		return n
	}

	if logger != nil {
		logger.Warn("unrecognized error type",
			zap.String("error_type", string(errorType)),
		)
	}
	return statusTable[InternalServerError]
}
