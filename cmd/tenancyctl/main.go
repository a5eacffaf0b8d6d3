// tenancyctl runs operational tasks against a tenancy engine deployment: schema migrations,
// one-off expiry sweeps and minting development bearer tokens.
package main

import (
	"os"
)

var version = "dev" // set by the linker

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}
