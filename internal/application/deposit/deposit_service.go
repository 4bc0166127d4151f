package depositservice

import (
	"context"

	"github.com/tuncanbit/ledger/internal/domain"
)

// Gateway is the payment provider that collects deposit funds.
type Gateway interface {
	Initialize(ctx context.Context, amount int64, email string) (reference, authorizationURL string, err error)
	Verify(ctx context.Context, reference string) (domain.GatewayCharge, error)
}

type Initiated struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AmountMinor      int64  `json:"amount_minor"`
}

type IDepositService interface {
	Initiate(ctx context.Context, user domain.User, amount int64) (Initiated, error)
	// Reconcile authenticates a gateway webhook by its signature over the raw
	// body and settles the referenced deposit at most once.
	Reconcile(ctx context.Context, signature string, body []byte) error
	Status(ctx context.Context, user domain.User, reference string) (domain.Transaction, error)
	// StartVerification polls the gateway for deposits whose webhook never
	// arrived. It blocks until ctx is done.
	StartVerification(ctx context.Context) error
}
