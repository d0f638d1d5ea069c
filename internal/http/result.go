package httpapi

// Result wraps every non-GraphQL response.
//   - code: ResultSuccess, ResultError or ResultTokenExpired
//   - type: "success" | "error"
//   - result: payload, or details for an error (may be nil)
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// ResultTokenExpired goes out with HTTP 401 so clients re-authenticate
	ResultTokenExpired = 60401
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return FailWith(ResultError, message, nil)
}

// FailWith builds an error envelope with an explicit code and detail payload.
func FailWith(code int, message string, detail any) Result[any] {
	return Result[any]{Code: code, Type: "error", Message: message, Result: detail}
}
