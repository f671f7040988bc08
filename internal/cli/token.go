package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/utils"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	UserID uint64
	Role   string
	TTL    time.Duration
}

// NewTokenCommand creates the token command.  Production tokens come from
// the identity service; this one signs with JWT_SECRET for local use.
func NewTokenCommand(_ *RootOptions) *cobra.Command {
	opts := &TokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is required")
			}
			role := strings.ToUpper(opts.Role)
			switch role {
			case model.RoleDriver, model.RoleStaff, model.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", opts.Role)
			}
			if opts.UserID == 0 {
				return errors.New("--user-id is required")
			}
			tok, err := utils.NewAccessToken(secret, opts.UserID, role, opts.TTL)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return err
		},
	}
	cmd.Flags().Uint64Var(&opts.UserID, "user-id", 0, "user id to put in the subject claim")
	cmd.Flags().StringVar(&opts.Role, "role", model.RoleDriver, "DRIVER, STAFF or ADMIN")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 15*time.Minute, "token lifetime")
	return cmd
}
