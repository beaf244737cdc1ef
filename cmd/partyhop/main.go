package main

import (
	"context"
	"fmt"
	"os"

	"github.com/partyhop/backend/internal/app"
)

func main() {
	if err := app.Run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "partyhop: %v\n", err)
		os.Exit(1)
	}
}
