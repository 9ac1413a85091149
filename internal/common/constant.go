package common

// AuthorizationHeaderName is the HTTP header carrying bearer tokens.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only authorization scheme accepted by the server.
const BearerScheme = "Bearer"

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// SigningAlgorithmHS256 is the only accepted token signing algorithm.
const SigningAlgorithmHS256 = "HS256"
