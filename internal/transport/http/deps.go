package http

import (
	"github.com/kset/verifikator/internal/application/roster"
	"github.com/kset/verifikator/internal/application/verification"
)

// Deps holds all infrastructure dependencies for the router. Mailer,
// Publisher and Receipts are optional; leave them nil to disable the
// corresponding side effect.
type Deps struct {
	Attempts  verification.AttemptRepository
	Roster    *roster.Cache
	Exchanger verification.Exchanger
	Mailer    verification.Mailer
	Publisher verification.Publisher
	Receipts  verification.ReceiptSigner
}
