package utils

// CORSLowSecurityAllowedOriginLocalhost is appended to the allowed
// origins when the high-security CORS flag is off (local development).
const CORSLowSecurityAllowedOriginLocalhost = "http://localhost:3000"

func Ptr[T any](v T) *T {
	return &v
}

func Val[T any](p *T) T {
	if p != nil {
		return *p
	}
	var zero T
	return zero
}
