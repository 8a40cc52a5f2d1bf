package main

import (
	"github.com/NVIDIA/dcgm-provision/pkg/cli"
)

func main() {
	cli.Execute()
}
