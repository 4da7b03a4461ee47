package oauth2

import "net/http"

// OIDCError es el único tipo de error que sale del subsistema de grants.
// Code es el código de protocolo (invalid_grant, invalid_request, ...);
// Description es legible para humanos. Ningún fallo parcial devuelve tokens.
type OIDCError struct {
	Code        string
	Description string
}

func (e *OIDCError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

func InvalidRequest(desc string) *OIDCError { return &OIDCError{Code: "invalid_request", Description: desc} }

func InvalidClient(desc string) *OIDCError { return &OIDCError{Code: "invalid_client", Description: desc} }

func InvalidGrant(desc string) *OIDCError { return &OIDCError{Code: "invalid_grant", Description: desc} }

func InvalidScope(desc string) *OIDCError { return &OIDCError{Code: "invalid_scope", Description: desc} }

func UnauthorizedClient(desc string) *OIDCError {
	return &OIDCError{Code: "unauthorized_client", Description: desc}
}

func ServerError(desc string) *OIDCError { return &OIDCError{Code: "server_error", Description: desc} }

// HTTPStatus mapea el código de protocolo al status HTTP del borde.
func (e *OIDCError) HTTPStatus() int {
	switch e.Code {
	case "invalid_client":
		return http.StatusUnauthorized
	case "server_error":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
