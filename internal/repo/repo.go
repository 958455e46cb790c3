package repo

import (
	"github.com/GlebRadaev/payflow/internal/pg"
	paymentrepo "github.com/GlebRadaev/payflow/internal/repo/payment-repo"
	userrepo "github.com/GlebRadaev/payflow/internal/repo/user-repo"
	"github.com/GlebRadaev/payflow/internal/service/settlement"
)

// Repositories binds each store to its own database: payments and users live
// in independent Postgres instances.
type Repositories struct {
	PaymentRepo settlement.PaymentRepo
	UserRepo    settlement.UserRepo
}

func New(paymentDB pg.Database, paymentTx pg.TXManager, userDB pg.Database) *Repositories {
	paymentRepo := paymentrepo.New(paymentDB, paymentTx)
	userRepo := userrepo.New(userDB)

	return &Repositories{
		PaymentRepo: paymentRepo,
		UserRepo:    userRepo,
	}
}
