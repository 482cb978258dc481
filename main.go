package main

import (
	"github.com/bisibesi/tablesync/cmd"

	_ "github.com/microsoft/go-mssqldb"
)

func main() {
	cmd.Execute()
}
