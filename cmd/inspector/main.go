// Inspector dumps the chat store for debugging: rooms, messages, users
// and the handle index, rendered as a table. Read-only, safe to run
// against a live database directory.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"chat-server/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Empty prefix scans the whole store; "msg:" or "room:" narrows it.
	prefix := flag.String("prefix", "", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Owner", "Detail", "Extra"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			// Sequence counters hold badger-internal varints, not JSON.
			if strings.HasPrefix(rawKey, "seq:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				row, err := describe(rawKey, v)
				if err != nil {
					// Log the bad record and keep scanning.
					fmt.Printf("Error decoding key %s: %v\n", rawKey, err)
					return nil
				}
				table.Append(row)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func describe(key string, value []byte) ([]string, error) {
	switch {
	case strings.HasPrefix(key, "room:"):
		var room repositories.DiskRoom
		if err := json.Unmarshal(value, &room); err != nil {
			return nil, err
		}
		return []string{key, "ROOM", shorten(room.Creator), room.Caption,
			fmt.Sprintf("%d members", len(room.Members))}, nil

	case strings.HasPrefix(key, "msg:"):
		var msg repositories.DiskMessage
		if err := json.Unmarshal(value, &msg); err != nil {
			return nil, err
		}
		return []string{key, "MSG", shorten(msg.Sender), truncate(msg.Content, 40),
			msg.At.Format("15:04:05")}, nil

	case strings.HasPrefix(key, "user:"):
		var user repositories.User
		if err := json.Unmarshal(value, &user); err != nil {
			return nil, err
		}
		// Password hash is deliberately not displayed.
		return []string{key, "USER", shorten(user.ID), user.Name, "@" + user.Handle}, nil

	case strings.HasPrefix(key, "handle:"):
		return []string{key, "INDEX", shorten(string(value)), "", ""}, nil
	}
	return []string{key, "?", "", truncate(string(value), 40), ""}, nil
}

// shorten keeps the first 8 characters of an id for readability.
func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)
	return badger.Open(opts)
}
