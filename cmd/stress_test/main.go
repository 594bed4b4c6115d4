package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/menu-orders/internal/adapter/storage"
	"github.com/rl1809/menu-orders/internal/config"
	"github.com/rl1809/menu-orders/internal/core/domain"
	"github.com/rl1809/menu-orders/internal/core/service"
)

const (
	initialUnits  = 20
	totalRequests = 50
	lockWait      = 30 * time.Second
)

// Fires concurrent single-unit cancellations at one order. Exactly
// initialUnits of them may succeed and the order must end empty.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	log := cfg.NewLogger()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: cfg.RedisPoolSize})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("connect redis")
	}
	defer rdb.Close()

	db, err := sqlx.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.WithError(err).Fatal("open mysql")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.MySQLMaxOpenConns)
	if err := storage.Migrate(db.DB); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	menuRepo := storage.NewMySQLMenuRepository(db)
	orderRepo := storage.NewMySQLOrderRepository(db)
	menuService := service.NewMenuService(menuRepo, log)
	orderService := service.NewOrderService(orderRepo, menuRepo,
		service.WithLocker(storage.NewRedisLocker(rdb, cfg.LockTTL, lockWait)),
		service.WithLogger(log.WithField("component", "stress")),
	)

	item, err := menuService.Create(ctx, domain.MenuItem{
		Name:  fmt.Sprintf("stress-item-%d", time.Now().UnixNano()),
		Price: decimal.RequireFromString("2.50"),
	})
	if err != nil {
		log.WithError(err).Fatal("seed menu item")
	}
	defer menuService.Remove(ctx, item.ID)

	order, err := orderService.CreateOrder(ctx, service.CreateOrderInput{
		QRCodeLink: "stress-test",
		Items:      []domain.ItemQuantity{{ID: item.ID, Quantity: initialUnits}},
	})
	if err != nil {
		log.WithError(err).Fatal("create order")
	}
	defer orderService.Remove(ctx, order.ID)

	var successCount, rejectedCount, errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := orderService.CancelItemsFromOrder(ctx, order.ID,
				[]domain.ItemQuantity{{ID: item.ID, Quantity: 1}}, nil)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientQuantity), errors.Is(err, domain.ErrNothingToCancel):
				rejectedCount.Add(1)
			default:
				errorCount.Add(1)
				log.WithError(err).Warn("unexpected cancel failure")
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	final, err := orderService.FindOne(ctx, order.ID)
	if err != nil {
		log.WithError(err).Fatal("reload order")
	}

	success, rejected, failed := successCount.Load(), rejectedCount.Load(), errorCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Units:    %d\n", initialUnits)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Cancelled:        %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Errors:           %d\n", failed)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Printf("Final Total:      %s\n", final.Total.StringFixed(2))
	fmt.Printf("Final Items:      %d\n", len(final.Items))
	fmt.Printf("Event Log:        %d\n", len(final.EventLog))
	fmt.Println("==========================================")

	if success == initialUnits && rejected == totalRequests-initialUnits && failed == 0 {
		fmt.Printf("PASS: exactly %d cancellations succeeded\n", initialUnits)
	} else {
		fmt.Printf("FAIL: expected %d/%d cancelled/rejected, got %d/%d (%d errors)\n",
			initialUnits, totalRequests-initialUnits, success, rejected, failed)
	}

	if final.Total.IsZero() && len(final.Items) == 0 && len(final.EventLog) == initialUnits+1 {
		fmt.Println("PASS: order emptied with one event per cancellation")
	} else {
		fmt.Println("FAIL: order state does not match the successful cancellations")
	}
}
