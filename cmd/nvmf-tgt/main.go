// File: cmd/nvmf-tgt/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// nvmf-tgt runs an NVMe-oF target on the reactor runtime.

package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
