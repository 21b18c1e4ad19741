package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// List prints every tracked item.
func (a *App) List(ctx context.Context, out io.Writer) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := store.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "no products are being tracked")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTarget\tRecipient\tURL")
	for _, item := range items {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n",
			item.ID,
			item.TargetPrice.StringFixed(2),
			sanitizeInline(item.Recipient),
			sanitizeInline(item.SourceURL),
		)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
