package main

import (
	"github.com/jvmprof/jvmprof/internal/cli"
)

func main() {
	cli.Execute()
}
