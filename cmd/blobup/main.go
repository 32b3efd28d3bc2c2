// Command blobup uploads files to a blob storage backend using resumable,
// concurrent multipart uploads.
package main

import (
	"fmt"
	"os"

	"github.com/rescale/blobup/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
