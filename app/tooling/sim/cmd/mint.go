package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/forkchain/foundation/blockchain/chain"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Submit transactions and mine a block for each of them.",
	RunE:  mintRun,
}

func init() {
	rootCmd.AddCommand(mintCmd)

	mintCmd.Flags().IntP("count", "n", 3, "Number of transactions to submit and mine.")
	mintCmd.Flags().String("from", "alice", "Sender of every transaction.")
	mintCmd.Flags().String("to", "bob", "Receiver of every transaction.")
	mintCmd.Flags().Uint64("amount-max", 1_000, "Largest random amount to send.")
	mintCmd.Flags().Bool("save", true, "Save the chain once every block is mined.")

	viper.BindPFlag("mint.count", mintCmd.Flags().Lookup("count"))
	viper.BindPFlag("mint.from", mintCmd.Flags().Lookup("from"))
	viper.BindPFlag("mint.to", mintCmd.Flags().Lookup("to"))
	viper.BindPFlag("mint.amount_max", mintCmd.Flags().Lookup("amount-max"))
	viper.BindPFlag("mint.save", mintCmd.Flags().Lookup("save"))
}

func mintRun(cmd *cobra.Command, args []string) error {
	ev, sync, err := newEvHandler()
	if err != nil {
		return err
	}
	defer sync()

	strg, err := openStorage()
	if err != nil {
		return err
	}
	defer strg.Close()

	chainCfg := chain.Config{EvHandler: ev}

	c, err := storage.Load(strg, chainCfg)
	switch {
	case errors.Is(err, storage.ErrNoData):
		c = chain.New(chainCfg)

	case err != nil:
		return err
	}

	amountMax := viper.GetUint64("mint.amount_max")
	if amountMax == 0 {
		amountMax = 1
	}

	count := viper.GetInt("mint.count")
	for range count {
		c.SubmitTransaction(viper.GetString("mint.from"), viper.GetString("mint.to"), rand.Uint64N(amountMax)+1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for c.MempoolLength() > 0 {
		block, err := c.Mint(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("blk[%d] nonce[%s] hash[%s] tx[%s]\n", c.Length()-1, block.Header.Nonce.Dec(), block.Hash, block.Tx)
	}

	if viper.GetBool("mint.save") {
		if err := storage.Save(strg, c); err != nil {
			return err
		}
		fmt.Printf("chain saved: length[%d]\n", c.Length())
	}

	return nil
}
