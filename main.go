// The main package for the inventory-crawler executable.
package main

import (
	"github.com/quirkauto/inventory-crawler/cmd"
)

func main() {
	cmd.Execute()
}
