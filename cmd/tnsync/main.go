package main

import (
	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driving/cli"
)

func main() {
	cli.Execute()
}
