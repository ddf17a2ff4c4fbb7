package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
	"github.com/vibast-solutions/ms-go-skywatch/app/repository"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/app/tier"
	"github.com/vibast-solutions/ms-go-skywatch/config"

	"github.com/spf13/cobra"
)

var (
	apiKeyName      string
	apiKeyTier      string
	apiKeyListAll   bool
	apiKeySyncQuota bool
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage SkyWatch API keys",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create an API key for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAPIKeyCommand(cmd, func(ctx context.Context, c *apiKeyCommand) error {
			user, err := c.users.FindByEmail(ctx, args[0])
			if err != nil {
				return accountError(args[0], err)
			}

			issued, err := c.keys.Create(ctx, user.ID, apiKeyName, apiKeyTier)
			if err != nil {
				var limitErr *service.KeyLimitError
				if errors.As(err, &limitErr) {
					return fmt.Errorf("account %s already has %d active API keys", user.Email, limitErr.Max)
				}
				return err
			}

			printIssuedKey(issued.Key, issued.PlainKey)
			return nil
		})
	},
}

var apiKeyListCmd = &cobra.Command{
	Use:   "list <email>",
	Short: "List the API keys of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAPIKeyCommand(cmd, func(ctx context.Context, c *apiKeyCommand) error {
			user, err := c.users.FindByEmail(ctx, args[0])
			if err != nil {
				return accountError(args[0], err)
			}

			keys, err := c.keys.List(ctx, user.ID, apiKeyListAll)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Printf("no API keys for %s\n", user.Email)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPREFIX\tTIER\tQUOTA\tRESETS\tACTIVE\tLAST USED")
			for _, key := range keys {
				lastUsed := "never"
				if key.LastUsed.Valid {
					lastUsed = key.LastUsed.Time.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%d\t%s\t%s...\t%s\t%d/%d\t%s\t%t\t%s\n",
					key.ID, key.Name, key.KeyPrefix, key.Tier, key.QuotaUsed, key.QuotaLimit,
					key.QuotaResetDate.UTC().Format("2006-01-02"), key.IsActive, lastUsed)
			}
			return w.Flush()
		})
	},
}

var apiKeyRegenerateCmd = &cobra.Command{
	Use:   "regenerate <email> <key_id>",
	Short: "Replace the secret of an API key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyID, err := parseKeyID(args[1])
		if err != nil {
			return err
		}

		return withAPIKeyCommand(cmd, func(ctx context.Context, c *apiKeyCommand) error {
			user, err := c.users.FindByEmail(ctx, args[0])
			if err != nil {
				return accountError(args[0], err)
			}

			issued, err := c.keys.Regenerate(ctx, user.ID, keyID)
			if err != nil {
				return keyError(keyID, err)
			}

			printIssuedKey(issued.Key, issued.PlainKey)
			return nil
		})
	},
}

var apiKeyDeactivateCmd = &cobra.Command{
	Use:   "deactivate <email> <key_id>",
	Short: "Deactivate an API key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyID, err := parseKeyID(args[1])
		if err != nil {
			return err
		}

		return withAPIKeyCommand(cmd, func(ctx context.Context, c *apiKeyCommand) error {
			user, err := c.users.FindByEmail(ctx, args[0])
			if err != nil {
				return accountError(args[0], err)
			}

			if err = c.keys.Deactivate(ctx, user.ID, keyID); err != nil {
				return keyError(keyID, err)
			}

			fmt.Printf("deactivated API key %d for %s\n", keyID, user.Email)
			return nil
		})
	},
}

var apiKeySetTierCmd = &cobra.Command{
	Use:   "set-tier <key_id> <tier>",
	Short: "Change the tier of an API key",
	Long: `Change the tier of an API key. The hourly rate limit follows the new tier
on the next request. The monthly quota limit is only rewritten with --sync-quota.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyID, err := parseKeyID(args[0])
		if err != nil {
			return err
		}

		return withAPIKeyCommand(cmd, func(ctx context.Context, c *apiKeyCommand) error {
			key, err := c.keys.SetTier(ctx, keyID, args[1], apiKeySyncQuota)
			if err != nil {
				return keyError(keyID, err)
			}

			fmt.Printf("api_key_id: %d\n", key.ID)
			fmt.Printf("tier: %s\n", key.Tier)
			fmt.Printf("hourly_rate_limit: %d\n", tier.HourlyRateLimit(key.Tier))
			fmt.Printf("quota_limit: %d\n", key.QuotaLimit)
			return nil
		})
	},
}

func init() {
	apiKeyCreateCmd.Flags().StringVar(&apiKeyName, "name", "cli", "display name of the key")
	apiKeyCreateCmd.Flags().StringVar(&apiKeyTier, "tier", tier.Free, "tier of the key (free, basic, pro, enterprise)")
	apiKeyListCmd.Flags().BoolVar(&apiKeyListAll, "all", false, "include deactivated keys")
	apiKeySetTierCmd.Flags().BoolVar(&apiKeySyncQuota, "sync-quota", false, "also set quota_limit to the tier's monthly quota")

	apiKeyCmd.AddCommand(apiKeyCreateCmd)
	apiKeyCmd.AddCommand(apiKeyListCmd)
	apiKeyCmd.AddCommand(apiKeyRegenerateCmd)
	apiKeyCmd.AddCommand(apiKeyDeactivateCmd)
	apiKeyCmd.AddCommand(apiKeySetTierCmd)
	rootCmd.AddCommand(apiKeyCmd)
}

type apiKeyCommand struct {
	users service.UserAuthService
	keys  service.APIKeyService
}

func withAPIKeyCommand(cmd *cobra.Command, run func(ctx context.Context, c *apiKeyCommand) error) error {
	cfg, err := config.LoadForCLI()
	if err != nil {
		return err
	}
	if err = configureLogging(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := openDB(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	return run(ctx, newAPIKeyCommand(db, cfg))
}

func newAPIKeyCommand(db *sql.DB, cfg *config.Config) *apiKeyCommand {
	return &apiKeyCommand{
		users: service.NewUserAuthService(repository.NewUserRepository(db), cfg),
		keys:  service.NewAPIKeyService(repository.NewAPIKeyRepository(db), repository.NewUsageRepository(db), cfg),
	}
}

func printIssuedKey(key *entity.APIKey, plainKey string) {
	fmt.Printf("api_key_id: %d\n", key.ID)
	fmt.Printf("name: %s\n", key.Name)
	fmt.Printf("tier: %s\n", key.Tier)
	fmt.Printf("quota_limit: %d\n", key.QuotaLimit)
	fmt.Printf("quota_reset_date: %s\n", key.QuotaResetDate.UTC().Format(time.RFC3339))
	fmt.Printf("api_key: %s\n", plainKey)
	fmt.Println("store this key now, it will not be shown again")
}

func parseKeyID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid key id %q", raw)
	}
	return id, nil
}

func accountError(email string, err error) error {
	if errors.Is(err, service.ErrUserNotFound) {
		return fmt.Errorf("no account with email %s", email)
	}
	return err
}

func keyError(keyID uint64, err error) error {
	if errors.Is(err, service.ErrAPIKeyNotFound) {
		return fmt.Errorf("API key %d not found or inactive", keyID)
	}
	return err
}
