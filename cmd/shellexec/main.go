package main

import "github.com/dino2gnt/opennms-shellexecutor-plugin/cmd/shellexec/cmd"

func main() {
	cmd.Execute()
}
