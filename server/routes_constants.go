package server

const (
	RouteAuthLogin     = "/auth/login"
	RouteAuthMFAVerify = "/auth/mfa/verify"
	RouteAuthRegister  = "/auth/register"
	RouteAuthLogout    = "/auth/logout"
	RouteUserByEmail   = "/users/email/{email}"
	RouteWellKnownJWKS = "/.well-known/jwks.json"
	RouteHealth        = "/healthz"
)
