package main

import (
	"os"

	"github.com/Ramdan0505/radlab-preinvest/cmd/radtriage/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
