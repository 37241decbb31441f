package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"chat-rooms/protocol"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	Room           string `envconfig:"ROOM"`
	Limit          int    `envconfig:"LIMIT" default:"50"`
}

// The viewer dumps the room logs of a (possibly running) server instance
// as a table on stdout. BypassLockGuard allows opening the database while
// the server process still holds the lock.
func main() {
	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	prefix := []byte("room#")
	if config.Room != "" {
		prefix = []byte(fmt.Sprintf("room#%s#", config.Room))
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room", "Username", "Message", "Date"})
	table.SetAutoWrapText(false)

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix) && count < config.Limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var wire protocol.WirePost
				if err := json.Unmarshal(val, &wire); err != nil {
					return err
				}
				table.Append([]string{wire.RoomID, wire.Username, wire.Message, wire.Date})
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to scan database: %v", err)
	}

	color.Cyan.Printf("📜 %d post(s) under prefix %q\n", count, prefix)
	table.Render()
}
