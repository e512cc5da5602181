package leveldb_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ardanlabs/forkchain/foundation/blockchain/storage"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage/leveldb"
	goleveldb "github.com/syndtr/goleveldb/leveldb"
	memstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_LevelDB(t *testing.T) {
	t.Log("Given the need to persist chain data to LevelDB.")
	{
		db, err := goleveldb.Open(memstorage.NewMemStorage(), nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %s", failed, err)
		}
		defer db.Close()

		ldb, err := leveldb.NewFromDB(db, "main")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the serializer: %s", failed, err)
		}

		if _, err := ldb.Read(); !errors.Is(err, storage.ErrNoData) {
			t.Fatalf("\t%s\tShould get ErrNoData before any write, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould get ErrNoData before any write.", success)

		writes := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
		for _, data := range writes {
			if err := ldb.Write(data); err != nil {
				t.Fatalf("\t%s\tShould be able to write: %s", failed, err)
			}
		}

		got, err := ldb.Read()
		if err != nil || !bytes.Equal(got, writes[2]) {
			t.Fatalf("\t%s\tShould read back the last write, got %q: %v", failed, got, err)
		}
		t.Logf("\t%s\tShould read back the last write.", success)

		seqs, err := ldb.History()
		if err != nil || len(seqs) != len(writes) {
			t.Fatalf("\t%s\tShould keep %d snapshots in history, got %v: %v", failed, len(writes), seqs, err)
		}
		for i, seq := range seqs {
			data, err := ldb.ReadVersion(seq)
			if err != nil || !bytes.Equal(data, writes[i]) {
				t.Fatalf("\t%s\tShould read version %d as %q, got %q: %v", failed, seq, writes[i], data, err)
			}
		}
		t.Logf("\t%s\tShould keep every snapshot in history.", success)

		other, err := leveldb.NewFromDB(db, "main")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reopen the serializer: %s", failed, err)
		}
		if err := other.Write([]byte("four")); err != nil {
			t.Fatalf("\t%s\tShould be able to write after reopening: %s", failed, err)
		}
		if seqs, _ := other.History(); len(seqs) != 4 || seqs[3] != 4 {
			t.Fatalf("\t%s\tShould continue the history sequence, got %v.", failed, seqs)
		}
		t.Logf("\t%s\tShould continue the history sequence after reopening.", success)

		sim, err := leveldb.NewFromDB(db, "sim")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a second serializer: %s", failed, err)
		}
		if _, err := sim.Read(); !errors.Is(err, storage.ErrNoData) {
			t.Fatalf("\t%s\tShould keep names apart, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould keep names apart.", success)
	}
}

func Test_Names(t *testing.T) {
	t.Log("Given the need to keep the history of every chain name apart.")
	{
		db, err := goleveldb.Open(memstorage.NewMemStorage(), nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %s", failed, err)
		}
		defer db.Close()

		for _, name := range []string{"", "a:b", ":"} {
			if _, err := leveldb.NewFromDB(db, name); !errors.Is(err, leveldb.ErrInvalidName) {
				t.Fatalf("\t%s\tShould reject the name %q, got %v.", failed, name, err)
			}
		}
		t.Logf("\t%s\tShould reject empty names and names holding the separator.", success)

		a, err := leveldb.NewFromDB(db, "a")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a serializer for a: %s", failed, err)
		}
		ab, err := leveldb.NewFromDB(db, "ab")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a serializer for ab: %s", failed, err)
		}

		for range 3 {
			if err := ab.Write([]byte("ab")); err != nil {
				t.Fatalf("\t%s\tShould be able to write ab: %s", failed, err)
			}
		}
		if err := a.Write([]byte("a")); err != nil {
			t.Fatalf("\t%s\tShould be able to write a: %s", failed, err)
		}

		seqs, err := a.History()
		if err != nil || len(seqs) != 1 || seqs[0] != 1 {
			t.Fatalf("\t%s\tShould only see its own history, got %v: %v", failed, seqs, err)
		}

		reopened, err := leveldb.NewFromDB(db, "a")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reopen a: %s", failed, err)
		}
		if err := reopened.Write([]byte("a2")); err != nil {
			t.Fatalf("\t%s\tShould be able to write after reopening: %s", failed, err)
		}
		if seqs, _ := reopened.History(); len(seqs) != 2 || seqs[1] != 2 {
			t.Fatalf("\t%s\tShould continue its own sequence, got %v.", failed, seqs)
		}
		t.Logf("\t%s\tShould only see its own history.", success)
	}
}
