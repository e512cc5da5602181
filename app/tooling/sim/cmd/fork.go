package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/forkchain/foundation/blockchain/chain"
	"github.com/ardanlabs/forkchain/foundation/blockchain/forkset"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var forkCmd = &cobra.Command{
	Use:   "fork",
	Short: "Grow competing branches and resolve them into the chain.",
	RunE:  forkRun,
}

func init() {
	rootCmd.AddCommand(forkCmd)

	def := forkset.DefaultSchedule()
	forkCmd.Flags().Duration("duration", 2*time.Minute, "How long to run before giving up on convergence.")
	forkCmd.Flags().Duration("extend", def.Extend, "How often a branch is extended.")
	forkCmd.Flags().Duration("fork", def.Fork, "How often a branch is forked.")
	forkCmd.Flags().Duration("resolve", def.Resolve, "How often the branches are resolved.")
	forkCmd.Flags().Uint64("amount-max", 0, "Largest simulated amount, zero uses the default.")
	forkCmd.Flags().Bool("load", false, "Start from the saved chain instead of a new genesis.")
	forkCmd.Flags().Bool("save", false, "Save the chain once the run completes.")

	viper.BindPFlag("fork.duration", forkCmd.Flags().Lookup("duration"))
	viper.BindPFlag("fork.extend", forkCmd.Flags().Lookup("extend"))
	viper.BindPFlag("fork.fork", forkCmd.Flags().Lookup("fork"))
	viper.BindPFlag("fork.resolve", forkCmd.Flags().Lookup("resolve"))
	viper.BindPFlag("fork.amount_max", forkCmd.Flags().Lookup("amount-max"))
	viper.BindPFlag("fork.load", forkCmd.Flags().Lookup("load"))
	viper.BindPFlag("fork.save", forkCmd.Flags().Lookup("save"))
}

func forkRun(cmd *cobra.Command, args []string) error {
	ev, sync, err := newEvHandler()
	if err != nil {
		return err
	}
	defer sync()

	load := viper.GetBool("fork.load")
	save := viper.GetBool("fork.save")

	var strg storage.Serializer
	if load || save {
		if strg, err = openStorage(); err != nil {
			return err
		}
		defer strg.Close()
	}

	chainCfg := chain.Config{EvHandler: ev}

	canonical := chain.New(chainCfg)
	if load {
		canonical, err = storage.Load(strg, chainCfg)
		switch {
		case errors.Is(err, storage.ErrNoData):
			canonical = chain.New(chainCfg)

		case err != nil:
			return err
		}
	}

	fs := forkset.New(canonical, forkset.Config{
		ChainConfig: chainCfg,
		AmountMax:   viper.GetUint64("fork.amount_max"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := forkset.RunConfig{
		Schedule: forkset.Schedule{
			Extend:  viper.GetDuration("fork.extend"),
			Fork:    viper.GetDuration("fork.fork"),
			Resolve: viper.GetDuration("fork.resolve"),
		},
		Duration: viper.GetDuration("fork.duration"),
	}

	fmt.Printf("running: extend[%v] fork[%v] resolve[%v] duration[%v]\n",
		cfg.Schedule.Extend, cfg.Schedule.Fork, cfg.Schedule.Resolve, cfg.Duration)

	res, err := forkset.Run(ctx, fs, cfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("steps[%d] extends[%d] forks[%d] resolves[%d] merged[%d] converged[%t] elapsed[%v]\n",
		res.Steps, res.Extends, res.Forks, res.Resolves, res.Merged, res.Converged, res.Elapsed.Round(time.Millisecond))
	fmt.Printf("chain length[%d] head[%s] branches%v orphans[%d]\n",
		canonical.Length(), canonical.Head().Hash, fs.Branches(), fs.Orphans())

	if save {
		if err := storage.Save(strg, canonical); err != nil {
			return err
		}
		fmt.Println("chain saved")
	}

	return nil
}
