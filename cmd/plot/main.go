// Command plot prints the customer coordinates of a Solomon instance as
// "x;y" lines sorted by x then y, ready for a scatter plot.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"vrptw/internal/integrations/solomon"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: plot <instance>")
		os.Exit(2)
	}
	inst, err := solomon.File{Path: os.Args[1]}.Load(context.Background())
	if err != nil {
		slog.Error("load instance", "path", os.Args[1], "err", err)
		os.Exit(1)
	}
	w := bufio.NewWriter(os.Stdout)
	if err := solomon.WritePlot(w, inst); err != nil {
		slog.Error("write", "err", err)
		os.Exit(1)
	}
	if err := w.Flush(); err != nil {
		slog.Error("write", "err", err)
		os.Exit(1)
	}
}
