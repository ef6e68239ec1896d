package main

import (
	"os"

	"compliance-monitor/cmd/compliance-monitor/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
