// Command tplstr extracts, fills and renders Handlebars text templates.
package main

import (
	"os"

	"github.com/affandhia/simple-template-string/internal/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)
	os.Exit(cli.Execute())
}
