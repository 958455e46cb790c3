package service

import (
	"github.com/GlebRadaev/payflow/internal/loyalty"
	"github.com/GlebRadaev/payflow/internal/notification"
	"github.com/GlebRadaev/payflow/internal/pg"
	"github.com/GlebRadaev/payflow/internal/repo"
	"github.com/GlebRadaev/payflow/internal/service/finalizer"
	"github.com/GlebRadaev/payflow/internal/service/initiation"
	"github.com/GlebRadaev/payflow/internal/service/settlement"
)

type Services struct {
	SettlementService *settlement.Service
	InitiationService *initiation.Service
	FinalizerService  *finalizer.Service
}

func New(repo *repo.Repositories, userTx pg.TXManager, loyaltyClient *loyalty.Client, notificationClient *notification.Client) *Services {
	settlementService := settlement.New(repo.PaymentRepo, repo.UserRepo, userTx)
	finalizerService := finalizer.New(settlementService, loyaltyClient, notificationClient)
	initiationService := initiation.New(repo.PaymentRepo, repo.UserRepo, settlementService, loyaltyClient, notificationClient, finalizerService)

	return &Services{
		SettlementService: settlementService,
		InitiationService: initiationService,
		FinalizerService:  finalizerService,
	}
}
