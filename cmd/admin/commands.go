package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Luismorlan/picfeed/model"
	"github.com/Luismorlan/picfeed/server/middlewares"
	"github.com/Luismorlan/picfeed/session"
	"github.com/Luismorlan/picfeed/store"
	"github.com/Luismorlan/picfeed/utils"
	"github.com/Luismorlan/picfeed/utils/flag"
	. "github.com/Luismorlan/picfeed/utils/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "picfeed-admin",
		Short:        "Administrative tasks against the picfeed database",
		SilenceUsage: true,
		// logger fields depend on --dev
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			InitLogger()
		},
	}
	root.PersistentFlags().BoolVar(&flag.IsDevelopment, "dev", true, "set to false for production runs")
	root.AddCommand(newSeedCmd(), newTokenCmd(), newBanCmd())
	return root
}

func openStore() (*store.GormStore, error) {
	db, err := utils.GetDBConnection()
	if err != nil {
		return nil, errors.Wrap(err, "fail to connect database")
	}
	if err := utils.DatabaseSetupAndMigration(db); err != nil {
		return nil, errors.Wrap(err, "fail to migrate database")
	}
	return store.NewGormStore(db), nil
}

func parseIds(args []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id: %s", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newSeedCmd() *cobra.Command {
	var (
		accountName string
		admin       bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create an account, password material is left empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			user := &model.User{AccountName: accountName}
			if admin {
				user.Authority = model.AuthorityAdmin
			}
			if err := s.CreateUser(cmd.Context(), user); err != nil {
				return err
			}
			Log.WithFields(logrus.Fields{"user_id": user.Id, "account_name": user.AccountName}).Info("user created")
			return nil
		},
	}
	cmd.Flags().StringVar(&accountName, "account", "", "account name of the new user")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin authority")
	cmd.MarkFlagRequired("account")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user id>",
		Short: "Print a session token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIds(args)
			if err != nil {
				return err
			}
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET must be set")
			}
			token, err := middlewares.IssueToken([]byte(secret), ids[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newBanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ban <user id>...",
		Short: "Soft-ban users and drop their cached session record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIds(args)
			if err != nil {
				return err
			}
			s, err := openStore()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := s.BanUsers(ctx, ids); err != nil {
				return err
			}
			if os.Getenv("REDIS_HOST") != "" {
				cache, err := utils.GetRedisKeyValueStore(ctx)
				if err != nil {
					return errors.Wrap(err, "fail to connect redis")
				}
				defer cache.Close()
				if err := session.NewUserCache(cache, s).Invalidate(ctx, ids...); err != nil {
					return err
				}
			}
			Log.WithField("banned", ids).Info("users banned")
			return nil
		},
	}
}
