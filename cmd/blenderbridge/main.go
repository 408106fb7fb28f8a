package main

import (
	"os"

	"github.com/lydakis/blenderbridge/internal/gateway"
)

func main() {
	os.Exit(gateway.Run(os.Args[1:]))
}
