package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"classlog/internal/platform/config"
	"classlog/internal/platform/logger"
	redisclient "classlog/internal/platform/redis"
	rlmodels "classlog/internal/ratelimit/models"
	rlservice "classlog/internal/ratelimit/service"
	"classlog/internal/ratelimit/store/window"
)

var errNoSharedStore = errors.New("REDIS_URL is not set; only the shared redis throttle store can be reset")

type throttleResetOpts struct {
	caller string
	class  string
}

func newThrottleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "throttle",
		Short: "Operate on the verification throttle",
	}
	cmd.AddCommand(newThrottleResetCmd())
	return cmd
}

func newThrottleResetCmd() *cobra.Command {
	var opts throttleResetOpts
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear one caller's throttle window",
		Long: `Clear the current fixed window for one caller and operation class in
the shared redis store (REDIS_URL). The caller's next request starts a
fresh window.`,
		Example: `  classlogctl throttle reset --caller ip:203.0.113.9 --class verify`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runThrottleReset(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.caller, "caller", "", "caller identity as seen by the server (gateway caller id or ip:<addr>)")
	cmd.Flags().StringVar(&opts.class, "class", string(rlmodels.ClassVerify), "operation class")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}

func runThrottleReset(cmd *cobra.Command, opts throttleResetOpts) error {
	ctx := cmd.Context()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	class := rlmodels.OperationClass(opts.class)
	if _, ok := cfg.RateLimit.Classes.Lookup(class); !ok {
		return fmt.Errorf("unknown operation class %q", opts.class)
	}
	if cfg.Redis.URL == "" {
		return errNoSharedStore
	}

	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer client.Close()

	throttle, err := rlservice.New(window.NewRedisStore(client),
		rlservice.WithLogger(logger.Discard()),
		rlservice.WithClasses(cfg.RateLimit.Classes),
	)
	if err != nil {
		return err
	}
	if err := throttle.Reset(ctx, opts.caller, class); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "reset %s window for %s\n", class, opts.caller)
	return err
}
