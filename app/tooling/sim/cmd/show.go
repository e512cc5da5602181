package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/forkchain/foundation/blockchain/chain"
	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage/leveldb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// errNoHistory is returned when a version is asked of a serializer that
// only keeps the latest chain.
var errNoHistory = errors.New("only the leveldb storage keeps a history")

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved chain and its pending transactions.",
	RunE:  showRun,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Bool("history", false, "List the saved versions instead of the chain (leveldb only).")
	showCmd.Flags().Uint64("version", 0, "Print the chain as it was at a saved version (leveldb only).")

	viper.BindPFlag("show.history", showCmd.Flags().Lookup("history"))
	viper.BindPFlag("show.version", showCmd.Flags().Lookup("version"))
}

func showRun(cmd *cobra.Command, args []string) error {
	strg, err := openStorage()
	if err != nil {
		return err
	}
	defer strg.Close()

	if viper.GetBool("show.history") {
		return showHistory(strg)
	}

	if version := viper.GetUint64("show.version"); version > 0 {
		ldb, ok := strg.(*leveldb.LevelDB)
		if !ok {
			return errNoHistory
		}
		strg = versionReader{ldb: ldb, seq: version}
	}

	c, err := storage.Load(strg, chain.Config{})
	if err != nil {
		return err
	}

	blocks := c.Blocks()

	out := struct {
		Length  int                  `json:"length"`
		Blocks  []database.BlockData `json:"blocks"`
		Mempool []database.Tx        `json:"mempool"`
	}{
		Length:  len(blocks),
		Blocks:  make([]database.BlockData, len(blocks)),
		Mempool: c.Mempool(),
	}

	for i, block := range blocks {
		out.Blocks[i] = database.NewBlockData(block)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	return nil
}

// showHistory prints the sequence number of every saved version.
func showHistory(strg storage.Serializer) error {
	ldb, ok := strg.(*leveldb.LevelDB)
	if !ok {
		return errNoHistory
	}

	seqs, err := ldb.History()
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	for _, seq := range seqs {
		fmt.Println(seq)
	}

	return nil
}

// versionReader reads a saved version of the chain so it can be loaded
// like the latest one.
type versionReader struct {
	ldb *leveldb.LevelDB
	seq uint64
}

func (vr versionReader) Read() ([]byte, error) {
	return vr.ldb.ReadVersion(vr.seq)
}

func (vr versionReader) Write(data []byte) error {
	return fmt.Errorf("version %d is read only", vr.seq)
}

func (vr versionReader) Close() error {
	return nil
}
