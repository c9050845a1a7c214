package main

import (
	"os"

	"github.com/enesbasbug/async-translator/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
