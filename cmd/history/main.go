// Command history lists recent rows of the relay message log straight
// from the badger store, without going through the HTTP surface.
package main

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "/tmp/chat-relay/badger", "Path to badger DB")
	user := flag.String("user", "", "Only rows authored by this user")
	limit := flag.Int("limit", 50, "Maximum number of rows")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	repository := repositories.NewMessageRepository(db, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	messages, err := fetch(repository, *user, *limit)
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "User", "Kind", "Message ID", "Replied To", "Text"})
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

	for _, msg := range messages {
		text := msg.Text
		if len(text) > 80 {
			text = text[:80] + "..."
		}
		author := msg.User
		if msg.FromBot {
			author = author + " [bot]"
		}
		table.Append([]string{
			msg.At.Format("2006-01-02 15:04:05"),
			author,
			string(msg.Kind),
			msg.MessageID,
			msg.RepliedTo,
			text,
		})
	}

	table.Render()

	summary := fmt.Sprintf(" %d rows ", len(messages))
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(summary))
}

func fetch(repository repositories.MessageRepository, user string, limit int) ([]domain.Message, error) {
	if user != "" {
		return repository.GetMessagesByUser(user, limit)
	}
	return repository.GetMessages(limit)
}
