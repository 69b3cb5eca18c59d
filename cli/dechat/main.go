package main

import (
	"os"

	dechatcmder "github.com/papercomputeco/dechat/cmd/dechat"
)

func main() {
	cmd := dechatcmder.NewDechatCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
