// Package main is the reforestar command itself.
package main

import (
	"log"
	"os"

	rcli "go.reforestar.dev/planting/cli"
)

func main() {
	app := rcli.NewApp(os.Stdout, os.Stdin)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
