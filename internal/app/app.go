package app

import (
	"github.com/dropDatabas3/gatejohn/internal/cache"
	jwtx "github.com/dropDatabas3/gatejohn/internal/jwt"
	"github.com/dropDatabas3/gatejohn/internal/login"
	"github.com/dropDatabas3/gatejohn/internal/oauth2"
	"github.com/dropDatabas3/gatejohn/internal/store/core"
)

// Container agrupa las dependencias compartidas por los handlers.
type Container struct {
	Store     core.Repository
	Cache     cache.Client
	Issuer    *jwtx.Issuer
	Registry  *oauth2.Registry
	Codes     *oauth2.CodeStore
	Tokens    *oauth2.Generator
	Redirects *login.RedirectValidator
}
