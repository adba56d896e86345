package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memberhub/config"
	"memberhub/internal/database"
	"memberhub/internal/domain"
	"memberhub/internal/models"
	"memberhub/internal/repository"
	"memberhub/internal/router"
	"memberhub/internal/service"
	"memberhub/pkg/cloudinary"
	"memberhub/pkg/payment"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "memberhub",
		Short:        "Membership platform API",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), markPaidCmd(), syncPaymentsCmd(), confirmLegacyCmd())
	return root
}

// bootstrap loads config, opens the database, migrates it and seeds the treasury.
func bootstrap() (*config.Config, *gorm.DB, *models.Account, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}
	treasury, err := database.SeedTreasury(db, &cfg.Treasury)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("seed treasury: %w", err)
	}
	if err := database.SeedSettings(db, database.DefaultSettings); err != nil {
		return nil, nil, nil, fmt.Errorf("seed settings: %w", err)
	}
	return cfg, db, treasury, nil
}

// reconciler builds the services an operator command needs. Notifications are stored but not pushed.
func reconciler(cfg *config.Config, db *gorm.DB, treasuryID uint) *service.ReconcilerService {
	notify := service.NewNotificationService(repository.NewNotificationRepository(db), nil)
	ledger := service.NewLedgerService(db, notify)
	return service.NewReconcilerService(db, ledger, notify, paymentProvider(&cfg.Payment), treasuryID)
}

func paymentProvider(cfg *config.PaymentConfig) payment.Provider {
	if cfg.CheckoutBaseURL == "" {
		log.Printf("[payment] no checkout provider configured, using stub")
		return &payment.StubProvider{BaseURL: cfg.SuccessURL}
	}
	return payment.NewCheckoutProvider(cfg.CheckoutBaseURL, cfg.CheckoutAPIKey)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, treasury, err := bootstrap()
			if err != nil {
				return err
			}
			var cloud cloudinary.Client
			if cfg.Cloudinary.CloudName != "" {
				cloud, err = cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
				if err != nil {
					return fmt.Errorf("cloudinary: %w", err)
				}
			} else {
				log.Printf("[cloudinary] not configured, uploads disabled")
			}

			stop := make(chan struct{})
			defer close(stop)
			engine := router.Setup(cfg, db, router.Options{
				Cloud:      cloud,
				Provider:   paymentProvider(&cfg.Payment),
				TreasuryID: treasury.ID,
				Stop:       stop,
			})
			srv := &http.Server{
				Addr:         ":" + cfg.Server.Port,
				Handler:      engine,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Printf("server listening on :%s", cfg.Server.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			select {
			case err := <-errCh:
				return fmt.Errorf("listen: %w", err)
			case <-ctx.Done():
			}
			log.Println("shutting down...")
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			log.Println("server stopped")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the schema and seed the treasury and default settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, treasury, err := bootstrap()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date, treasury account %d holds %s credits\n",
				treasury.ID, domain.FormatAmount(treasury.Balance, ""))
			return nil
		},
	}
}

func markPaidCmd() *cobra.Command {
	var (
		reference string
		id        uint
		paidAt    string
	)
	cmd := &cobra.Command{
		Use:   "mark-paid",
		Short: "Mark a pending payment as paid, by reference or id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (reference == "") == (id == 0) {
				return errors.New("exactly one of --reference or --id is required")
			}
			var at time.Time
			if paidAt != "" {
				t, err := time.Parse("2006-01-02", paidAt)
				if err != nil {
					return fmt.Errorf("--paid-at: %w", err)
				}
				at = t
			}
			cfg, db, treasury, err := bootstrap()
			if err != nil {
				return err
			}
			svc := reconciler(cfg, db, treasury.ID)
			var rec *models.PaymentRecord
			if reference != "" {
				rec, err = svc.MarkPaidByReference(cmd.Context(), reference, at)
			} else {
				rec, err = svc.MarkPaid(cmd.Context(), id, at)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "payment %d (%s) paid, account %d has %s access until %s\n",
				rec.ID, rec.Reference, rec.AccountID, rec.Pack, rec.AccessUntil.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "bank transfer reference (MH-XXXX-XXXX) or provider session id")
	cmd.Flags().UintVar(&id, "id", 0, "payment record id")
	cmd.Flags().StringVar(&paidAt, "paid-at", "", "date the money arrived (YYYY-MM-DD), defaults to now")
	return cmd
}

func syncPaymentsCmd() *cobra.Command {
	var id uint
	cmd := &cobra.Command{
		Use:   "sync-payments",
		Short: "Poll the checkout provider for pending card payments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, treasury, err := bootstrap()
			if err != nil {
				return err
			}
			svc := reconciler(cfg, db, treasury.ID)
			if id != 0 {
				rec, err := svc.SyncCheckout(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "payment %d (%s) is %s\n", rec.ID, rec.Reference, rec.Status)
				return nil
			}
			res, err := svc.SyncPendingCheckouts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d pending checkouts: %d paid, %d failed, %d errors\n",
				res.Checked, res.Paid, res.Failed, res.Errors)
			return nil
		},
	}
	cmd.Flags().UintVar(&id, "id", 0, "sync a single payment record instead of every pending checkout")
	return cmd
}

func confirmLegacyCmd() *cobra.Command {
	var (
		id     uint
		reject bool
		note   string
	)
	cmd := &cobra.Command{
		Use:   "confirm-legacy",
		Short: "Confirm or reject a legacy payment verification as the treasury account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, treasury, err := bootstrap()
			if err != nil {
				return err
			}
			svc := reconciler(cfg, db, treasury.ID)
			var v *models.LegacyVerification
			if reject {
				v, err = svc.MarkRejected(cmd.Context(), treasury.ID, id, note)
			} else {
				v, err = svc.MarkConfirmed(cmd.Context(), treasury.ID, id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "legacy verification %d for account %d is %s\n", v.ID, v.AccountID, v.Status)
			return nil
		},
	}
	cmd.Flags().UintVar(&id, "id", 0, "legacy verification id")
	cmd.Flags().BoolVar(&reject, "reject", false, "reject instead of confirm")
	cmd.Flags().StringVar(&note, "note", "", "rejection note shown to the member")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
