package validation

import "regexp"

// Nombres de scope aceptados al registrar clients:
// minúsculas, 1..64 chars, empiezan y terminan en [a-z0-9],
// en el medio se admiten [a-z0-9:_.-]. Sin espacios ni ';'.
//
// Válidos: user, data, openid, storage:read, a_b-c.d:scope2
// Inválidos: BAD, "bad space", ;hack, :leader, trailer:, vacío.
var scopeName = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName dice si name puede registrarse como scope de un client.
func ValidScopeName(name string) bool {
	return scopeName.MatchString(name)
}
