package main

import (
	"context"

	"sitewatch-parser/cmd/sitewatch/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
