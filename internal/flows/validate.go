package flows

import "github.com/MrEthical07/goAccount/jwt"

// ValidateResult carries verified claims or the parse error.
type ValidateResult struct {
	Err    error
	Claims *jwt.AccessClaims
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	ParseAccess func(string) (*jwt.AccessClaims, error)
}

// RunValidate checks an access token by signature and claims alone.
func RunValidate(tokenStr string, deps ValidateDeps) ValidateResult {
	if tokenStr == "" {
		return ValidateResult{Err: errEmptyToken}
	}
	claims, err := deps.ParseAccess(tokenStr)
	if err != nil {
		return ValidateResult{Err: err}
	}
	return ValidateResult{Claims: claims}
}
