package main

import (
	"os"

	"github.com/lydakis/blenderbridge/internal/mockhost"
)

func main() {
	os.Exit(mockhost.Run(os.Args[1:]))
}
