package main

import (
	cmd "github.com/cozy-creator/hf-mirror/cmd/hfmirror"
)

func main() {
	cmd.Execute()
}
